package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// normalizeForFilter normalizes a name for substring filtering
// (lowercase, no diacritics), so "jiri" finds "Jiří Novák".
func normalizeForFilter(name string) string {
	return strings.ToLower(RemoveDiacritics(name))
}
