package migration

import (
	"fmt"
	"strings"
)

// =============================================================================
// Version Identifier
// =============================================================================

// Version identifies a single migration by its timestamp prefix.
//
// The canonical form contains digits only: the separators "-" and "_"
// that appear in file names are stripped during parsing, so
// "2012-10-31-100537" and "20121031100537" name the same migration.
// The zero Version ("") orders before every real version and stands
// for "nothing applied yet".
type Version string

// Zero is the version before any migration has been applied.
const Zero Version = ""

// ParseVersion normalizes a raw version string into canonical form.
// It accepts digit runs optionally separated by "-" or "_" and rejects
// everything else. "0" and the empty string parse to the zero version.
func ParseVersion(raw string) (Version, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			// separator
		default:
			return Zero, fmt.Errorf("invalid version %q: unexpected character %q", raw, r)
		}
	}
	v := Version(b.String())
	if v.IsZero() {
		return Zero, nil
	}
	return v, nil
}

// MustVersion is like ParseVersion but panics on invalid input.
// Intended for tests and compile-time-constant versions.
func MustVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero version.
func (v Version) IsZero() bool {
	return strings.TrimLeft(string(v), "0") == ""
}

// Compare orders two versions numerically by their digit value.
// It returns -1 when v sorts before other, 0 when they name the same
// version and +1 when v sorts after other. The zero version sorts
// before every real version.
func (v Version) Compare(other Version) int {
	a := strings.TrimLeft(string(v), "0")
	b := strings.TrimLeft(string(other), "0")
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Before reports whether v orders strictly before other.
func (v Version) Before(other Version) bool { return v.Compare(other) < 0 }

// After reports whether v orders strictly after other.
func (v Version) After(other Version) bool { return v.Compare(other) > 0 }

// Equal reports whether v and other name the same version.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// String renders the canonical form; the zero version renders as "0".
func (v Version) String() string {
	if v.IsZero() {
		return "0"
	}
	return string(v)
}
