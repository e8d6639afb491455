// Package vessel compares boat names the way carriers and issuers type them.
package vessel

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// "B/M", "BM", "B M", "b /m" and "Barco" prefixes name the same vessel.
	prefixPattern = regexp.MustCompile(`(?i)^\s*(b\s*/?\s*m\b|barco\b)\s*`)
	spacePattern  = regexp.MustCompile(`\s+`)
	listSeparator = regexp.MustCompile(`[,;\n]`)
)

// Fold strips diacritics, lowercases and collapses whitespace.
// It is also used for accent-insensitive text search.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.TrimSpace(spacePattern.ReplaceAllString(folded, " "))
}

// Normalize returns the comparison key of a vessel name.
func Normalize(name string) string {
	folded := Fold(name)
	return strings.TrimSpace(prefixPattern.ReplaceAllString(folded, ""))
}

// Same reports whether two names denote the same vessel. Empty names never match.
func Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Extract collects the vessels a user may act for from the single field,
// the list field and the free-text field (comma, semicolon or newline separated),
// dropping blanks and duplicates by normalized key while keeping first-seen spelling.
func Extract(single string, list []string, text string) []string {
	candidates := make([]string, 0, len(list)+2)
	candidates = append(candidates, single)
	candidates = append(candidates, list...)
	if text != "" {
		candidates = append(candidates, listSeparator.Split(text, -1)...)
	}

	seen := make(map[string]bool, len(candidates))
	vessels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		key := Normalize(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		vessels = append(vessels, c)
	}
	return vessels
}
