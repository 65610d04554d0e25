package title

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
)

var articles = []string{"the ", "a ", "an "}

// Slug converts a raw title into the catalog's address form: lower-case,
// diacritics stripped, "&" spelled out, apostrophes dropped, every other
// run of non-alphanumerics collapsed to a single hyphen.
func Slug(raw string) string {
	s := html.UnescapeString(raw)
	s = strings.ToLower(s)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Candidates derives the ordered identifier guesses for a title and year.
// The first element is always the plain slug with no year suffix; later
// variants append the year, drop a leading article, and preserve the
// ampersand. Duplicates are removed keeping first-seen order.
func Candidates(raw string, year int) []string {
	base := Slug(raw)
	if base == "" {
		return nil
	}

	variants := []string{base, fmt.Sprintf("%s-%d", base, year)}

	lowered := strings.ToLower(strings.TrimSpace(html.UnescapeString(raw)))
	for _, article := range articles {
		if !strings.HasPrefix(lowered, article) {
			continue
		}
		trimmed := Slug(lowered[len(article):])
		variants = append(variants, trimmed, fmt.Sprintf("%s-%d", trimmed, year))
		break
	}

	// Some catalog addresses keep the ampersand as a literal token.
	if strings.Contains(raw, "&") {
		amp := Slug(strings.ReplaceAll(html.UnescapeString(raw), "&", "ampersand"))
		amp = strings.ReplaceAll(amp, "ampersand", "&")
		variants = append(variants, amp, fmt.Sprintf("%s-%d", amp, year))
	}

	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
