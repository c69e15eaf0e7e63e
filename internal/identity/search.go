package identity

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

// FoldName folds a name for searching (lowercase, no diacritics, spaces for dashes).
// It is only used for filtering; identity names themselves stay exact.
func FoldName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

// Filter returns the identities whose folded name contains the folded query,
// preserving order. An empty query returns all identities.
func Filter(identities []Identity, query string) []Identity {
	q := FoldName(query)
	if q == "" {
		return identities
	}
	out := make([]Identity, 0, len(identities))
	for _, ident := range identities {
		if strings.Contains(FoldName(ident.Name), q) {
			out = append(out, ident)
		}
	}
	return out
}
