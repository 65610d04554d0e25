// Package title provides title normalization and slug candidate generation
// used to match loosely-specified movie names against the catalog.
package title

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the comparison key for a title. Two titles name the
// same entity iff their normalized forms are equal. The result is never
// displayed. Empty input yields an empty key, which callers treat as
// unresolvable.
func Normalize(raw string) string {
	s := html.UnescapeString(raw)
	s = strings.ToLower(s)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Equal reports whether two raw titles normalize to the same key.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
