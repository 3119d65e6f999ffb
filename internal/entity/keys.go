package entity

import (
	"encoding/hex"
	"strings"
)

// KeySegment makes an identifier usable as a single datastore key segment.
// Identifiers made only of letters, digits, '_' and '-' are kept as they are,
// anything else is hex encoded behind a '~', so distinct identifiers always
// give distinct segments.
func KeySegment(id string) string {
	if id != "" && strings.IndexFunc(id, isUnsafeKeyRune) == -1 {
		return id
	}

	return "~" + hex.EncodeToString([]byte(id))
}

func isUnsafeKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		return false
	}

	return true
}
