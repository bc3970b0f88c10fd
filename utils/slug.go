package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9_\s-]+`)
	slugSpacing = regexp.MustCompile(`[-\s]+`)
)

// GenerateSlug generates a URL and CSS friendly slug from a title. Accents
// are folded to their base letter, anything else non-alphanumeric is dropped.
func GenerateSlug(title string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(title) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	slug := strings.ToLower(b.String())
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = strings.TrimSpace(slug)
	slug = slugSpacing.ReplaceAllString(slug, "-")

	return strings.Trim(slug, "-")
}
