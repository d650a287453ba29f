package tx

import (
	"encoding/hex"
	"fmt"
)

// DefaultKeyType is the key type used for oracle submissions.
var DefaultKeyType = KeyType{'b', 't', 'c', '!'}

// KeyType tags which local keys may sign oracle submissions.
type KeyType [4]byte

// ParseKeyType accepts exactly four ASCII bytes, e.g. "btc!".
func ParseKeyType(s string) (KeyType, error) {
	var k KeyType
	if len(s) != len(k) {
		return k, fmt.Errorf("key type %q must be %d bytes", s, len(k))
	}
	copy(k[:], s)
	return k, nil
}

func (k KeyType) String() string {
	return string(k[:])
}

// Hex returns the hex form used for on-disk key directories.
func (k KeyType) Hex() string {
	return hex.EncodeToString(k[:])
}
