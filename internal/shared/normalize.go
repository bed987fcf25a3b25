package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail canonicalizes an email address for storage and lookup:
// trimmed, NFC-normalized and lowercased. Identity emails are unique under
// this normalization.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
