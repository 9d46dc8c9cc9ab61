package canonical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackSlug is used when a name has no sluggable characters.
const FallbackSlug = "business"

// DefaultLocale selects the transliteration table used by Slugify callers
// that have no locale of their own.
const DefaultLocale = "tr"

var transliterations = map[string]*strings.Replacer{
	"tr": strings.NewReplacer(
		"ş", "s", "Ş", "s",
		"ğ", "g", "Ğ", "g",
		"ı", "i", "İ", "i",
		"ü", "u", "Ü", "u",
		"ö", "o", "Ö", "o",
		"ç", "c", "Ç", "c",
	),
}

// Slugify transliterates locale-specific letters, strips remaining accents and
// joins alphanumeric runs with single hyphens.
func Slugify(name, locale string) string {
	s := strings.TrimSpace(name)
	if r, ok := transliterations[strings.ToLower(locale)]; ok {
		s = r.Replace(s)
	}
	// transform chains carry state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return FallbackSlug
	}
	return b.String()
}

// Slug is Slugify with DefaultLocale.
func Slug(name string) string {
	return Slugify(name, DefaultLocale)
}
