package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that carry no combining mark to strip.
var folds = strings.NewReplacer("ı", "i", "ø", "o", "ß", "ss", "æ", "ae", "œ", "oe", "ł", "l")

// Generate creates a URL-friendly slug from the given name. Accents are
// folded to their ASCII base letter.
//
// Examples:
//   - "Hand-Blown Glass" → "hand-blown-glass"
//   - "Crème Brûlée" → "creme-brulee"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	// Transformers are stateful, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = folds.Replace(s)

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
