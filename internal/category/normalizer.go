// Package category canonicalizes free-text business category names into
// stable slugs and rejects names too generic to act on.
package category

import (
	"regexp"
	"strings"
)

const minSlugLength = 3

// Generic buckets that would pollute the taxonomy. A lead classified into
// one of these is not actionable for any specific business.
var genericNames = map[string]struct{}{
	"general":  {},
	"business": {},
	"service":  {},
	"store":    {},
	"shop":     {},
	"local":    {},
	"any":      {},
	"other":    {},
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	disallowedRe  = regexp.MustCompile(`[^a-z0-9_]`)
	underscoresRe = regexp.MustCompile(`_+`)
)

// Normalize standardizes a category name: lowercase, whitespace runs
// become single underscores, every other character outside [a-z0-9_] is
// stripped, repeated underscores collapse, leading/trailing underscores
// are trimmed.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = disallowedRe.ReplaceAllString(s, "")
	s = underscoresRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Validate normalizes raw and reports whether the result is a usable
// category slug. Empty slugs, slugs shorter than three characters and
// generic buckets are rejected.
func Validate(raw string) (string, bool) {
	slug := Normalize(raw)
	if len(slug) < minSlugLength {
		return "", false
	}
	if _, generic := genericNames[slug]; generic {
		return "", false
	}
	return slug, true
}
