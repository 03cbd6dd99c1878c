package artifact

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fallbackBaseName is used when sanitizing leaves nothing of the original
// file name.
const fallbackBaseName = "artifact"

const remoteNameTimeLayout = "20060102_150405"

// NewRemoteName derives a flat remote object name from a caller-supplied file
// name: the base name is lowercased, every character outside [a-z0-9_.-] is
// replaced with an underscore, and the result is prefixed with the creation
// timestamp so concurrent uploads of the same nominal file do not collide.
func NewRemoteName(original string, now time.Time) string {
	return now.Format(remoteNameTimeLayout) + "_" + sanitizeBaseName(original)
}

// NewRemoteNameWithSuffix additionally inserts a random fragment between the
// timestamp and the base name. It is the retry form for uploads refused
// because the plain name was taken within the same clock second.
func NewRemoteNameWithSuffix(original string, now time.Time) string {
	frag := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return now.Format(remoteNameTimeLayout) + "_" + frag + "_" + sanitizeBaseName(original)
}

func sanitizeBaseName(original string) string {
	// Strip any directory components regardless of the client's separator
	// convention before sanitizing.
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	base = path.Base("/" + base)

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	safe := strings.Trim(b.String(), ".")
	if safe == "" || strings.Trim(safe, "_") == "" {
		return fallbackBaseName
	}
	return safe
}
