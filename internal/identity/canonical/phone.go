package canonical

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region used when a number carries no country code.
// Set once at startup from configuration.
var DefaultRegion = "TR"

// PhoneKind says how confidently a phone value was canonicalized.
type PhoneKind int

const (
	// PhoneEmpty means the input had no digits.
	PhoneEmpty PhoneKind = iota
	// PhoneParsed means the value is a country-aware E.164 number.
	PhoneParsed
	// PhoneFallback means parsing failed and the value is the digit-only form.
	PhoneFallback
)

func (k PhoneKind) String() string {
	switch k {
	case PhoneParsed:
		return "parsed"
	case PhoneFallback:
		return "fallback"
	default:
		return "empty"
	}
}

// PhoneResult is either Parsed(value), Fallback(rawDigits) or Empty.
type PhoneResult struct {
	Value string
	Kind  PhoneKind
}

// IsParsed reports whether Value is a confident E.164 number.
func (r PhoneResult) IsParsed() bool { return r.Kind == PhoneParsed }

// Phone canonicalizes raw in the given region. Parsing runs on the stripped
// form so re-canonicalizing any output returns it unchanged.
func Phone(raw, region string) PhoneResult {
	stripped := StripPhone(raw)
	if stripped == "" || stripped == "+" {
		return PhoneResult{Kind: PhoneEmpty}
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(stripped, strings.ToUpper(region))
	if err == nil && phonenumbers.IsPossibleNumber(num) {
		return PhoneResult{Value: phonenumbers.Format(num, phonenumbers.E164), Kind: PhoneParsed}
	}
	return PhoneResult{Value: stripped, Kind: PhoneFallback}
}

// CanonicalPhone returns the canonical phone in DefaultRegion, or "".
func CanonicalPhone(raw string) string {
	return Phone(raw, DefaultRegion).Value
}

// StripPhone keeps digits and a leading '+'.
func StripPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// PhoneSuffixLen is how many trailing digits the suffix fallback compares.
const PhoneSuffixLen = 10

// PhoneSuffix returns the last PhoneSuffixLen digits of s (or all of them).
func PhoneSuffix(s string) string {
	d := Digits(s)
	if len(d) > PhoneSuffixLen {
		return d[len(d)-PhoneSuffixLen:]
	}
	return d
}
