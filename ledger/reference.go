package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewReference returns prefix-<12 upper-case hex digits>, e.g. PAY-1A2B3C4D5E6F.
func NewReference(prefix string) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(b)), nil
}
