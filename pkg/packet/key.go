package packet

import "errors"

// MaxKeyLen is the longest accepted packet key.
const MaxKeyLen = 8

// ErrInvalidKey is returned for keys that are empty, too long or contain
// anything other than ASCII letters and digits.
var ErrInvalidKey = errors.New("packet: invalid key")

// Key identifies a message schema and intent, e.g. "B0" or "E1".
type Key string

// Valid reports whether k is 1 to MaxKeyLen ASCII letters or digits.
func (k Key) Valid() bool {
	if len(k) == 0 || len(k) > MaxKeyLen {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return string(k)
}
