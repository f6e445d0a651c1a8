package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// TokenizeText splits free-form chat text into lower-case tokens, with
// unicode normalization and accent folding ("é" matches "e"). Accent folding
// matters for the French term lists: users routinely type with and without
// diacritics.
func TokenizeText(text string) []string {
	// the transform chain is stateful and must not be shared across calls
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = bare
	}
	return strings.Fields(folded)
}

// Slugify reduces an arbitrary string to lower-case letters and digits only.
// Used to normalize configured terms the same way tokens are normalized.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}
