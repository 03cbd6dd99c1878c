package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog maps a device type to the ordered list of models allowed for it.
// It is built once at startup and never mutated afterwards.
type Catalog struct {
	models map[string][]string
	types  []string
}

// Default returns the built-in device catalogue.
func Default() *Catalog {
	return New(map[string][]string{
		"Numériseur": {"CR CLASSIC", "CR VITA", "CR VITAFLEX"},
		"Capteur":    {"LUX FOCUS", "DRXPLUS"},
		"Reprograph": {"DV5700", "DV5950", "DV6950"},
	})
}

// New builds a Catalog from a type → models mapping. The input is copied.
func New(entries map[string][]string) *Catalog {
	models := make(map[string][]string, len(entries))
	types := make([]string, 0, len(entries))
	for deviceType, deviceModels := range entries {
		models[deviceType] = append([]string(nil), deviceModels...)
		types = append(types, deviceType)
	}
	sort.Strings(types)
	return &Catalog{models: models, types: types}
}

// LoadFile reads a type → models mapping from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog file %s defines no device types", path)
	}
	return New(entries), nil
}

// Types returns the known device types in stable order.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.types...)
}

// Models returns the allowed models for deviceType, or nil when the type is
// unknown.
func (c *Catalog) Models(deviceType string) []string {
	return append([]string(nil), c.models[deviceType]...)
}

// Entries returns the full mapping for display purposes.
func (c *Catalog) Entries() map[string][]string {
	out := make(map[string][]string, len(c.models))
	for deviceType := range c.models {
		out[deviceType] = c.Models(deviceType)
	}
	return out
}

// ValidType reports whether deviceType is a catalogue key.
func (c *Catalog) ValidType(deviceType string) bool {
	_, ok := c.models[deviceType]
	return ok
}

// Validate checks that deviceModel belongs to deviceType's catalogue entry.
func (c *Catalog) Validate(deviceType, deviceModel string) bool {
	for _, m := range c.models[deviceType] {
		if m == deviceModel {
			return true
		}
	}
	return false
}
