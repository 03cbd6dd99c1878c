// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dmvault/pkg/ftp"
)

// Config is the full runtime configuration for the service.
type Config struct {
	// DatabaseURL is the Postgres DSN holding the metadata tables.
	DatabaseURL string
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string

	// FTP configures the remote file host. SoftwareBasePath optionally
	// roots software payloads under a distinct directory while sharing
	// credentials with the backup store.
	FTP              ftp.Config
	SoftwareBasePath string

	// NATSURL enables lifecycle event publication when set.
	NATSURL string
	// CatalogFile optionally replaces the built-in device catalogue.
	CatalogFile string
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	cfg.FTP.Host = os.Getenv("FTP_HOST")
	if cfg.FTP.Host == "" {
		return Config{}, fmt.Errorf("FTP_HOST is required")
	}
	cfg.FTP.Username = os.Getenv("FTP_USERNAME")
	if cfg.FTP.Username == "" {
		return Config{}, fmt.Errorf("FTP_USERNAME is required")
	}
	cfg.FTP.Password = os.Getenv("FTP_PASSWORD")
	cfg.FTP.Port = getEnvInt("FTP_PORT", 21)
	if cfg.FTP.Port <= 0 || cfg.FTP.Port > 65535 {
		return Config{}, fmt.Errorf("invalid FTP_PORT: %d", cfg.FTP.Port)
	}

	timeoutSec := getEnvInt("FTP_TIMEOUT_SECONDS", 90)
	if timeoutSec <= 0 {
		return Config{}, fmt.Errorf("invalid FTP_TIMEOUT_SECONDS: %d", timeoutSec)
	}
	cfg.FTP.Timeout = time.Duration(timeoutSec) * time.Second

	cfg.FTP.Passive = getEnvBool("FTP_PASSIVE", true)
	cfg.FTP.BasePath = getEnv("FTP_BASE_PATH", "/backups")
	cfg.SoftwareBasePath = os.Getenv("FTP_SOFTWARE_BASE_PATH")

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.CatalogFile = os.Getenv("CATALOG_FILE")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
