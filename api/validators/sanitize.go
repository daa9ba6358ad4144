package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxQuoteKeyLen bounds client-chosen quote keys.
const MaxQuoteKeyLen = 128

// SanitizeString trims input, drops control characters and cuts it to at
// most maxLen bytes without splitting a rune.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input))
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}

// ValidQuoteKey reports whether key is usable as a quote key: ASCII letters,
// digits and "-_.:" up to MaxQuoteKeyLen.
func ValidQuoteKey(key string) bool {
	if key == "" || len(key) > MaxQuoteKeyLen {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
