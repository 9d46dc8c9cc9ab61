package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"trustdir/internal/directory/predicate"
	"trustdir/internal/identity/canonical"
	pstrings "trustdir/pkg/platform/strings"
)

// MinTokenLen is the shortest token kept. Shorter tokens are noise.
const MinTokenLen = 3

var stopWords = map[string]struct{}{
	// Turkish
	"ve": {}, "veya": {}, "ile": {}, "ya": {}, "da": {}, "de": {}, "ki": {}, "mi": {}, "mı": {},
	"bir": {}, "bu": {}, "şu": {}, "için": {}, "icin": {}, "gibi": {}, "daha": {}, "çok": {},
	"cok": {}, "ama": {}, "fakat": {}, "hem": {}, "her": {}, "olan": {}, "olarak": {}, "yani": {},
	"en": {}, "ne": {}, "nasıl": {}, "nerede": {}, "yakın": {}, "yakini": {},
	// English
	"the": {}, "and": {}, "or": {}, "of": {}, "for": {}, "with": {}, "in": {}, "on": {}, "at": {},
	"a": {}, "an": {}, "to": {}, "by": {}, "from": {}, "near": {}, "best": {}, "top": {},
	// symbols
	"-": {}, "--": {}, "---": {}, "&": {}, "+": {}, "@": {}, ".": {}, "...": {}, "_": {}, "|": {}, "/": {},
}

// IsStopWord reports whether token is filtered out of search.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

func keepRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@._+-", r)
}

func hasAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// Tokenize lower-cases raw, splits it on whitespace and keeps the distinct
// tokens that survive character stripping, the length floor and the stop
// word set. Order is preserved.
func Tokenize(raw string) []string {
	fields := strings.Fields(strings.ToLower(raw))
	return pstrings.DedupeFunc(fields, func(f string) string {
		tok := strings.Map(func(r rune) rune {
			if keepRune(r) {
				return r
			}
			return -1
		}, f)
		if utf8.RuneCountInString(tok) < MinTokenLen || IsStopWord(tok) || !hasAlnum(tok) {
			return ""
		}
		return tok
	})
}

// BuildSearchFilter turns a free-text query into an AND over tokens of an OR
// over SearchFields. When no token survives it matches the raw query as a
// substring instead, so a non-empty query never yields a match-nothing
// filter. Queries with at least six digits also match phone digits.
// An empty query matches everything.
func BuildSearchFilter(raw string) predicate.Predicate {
	raw = canonical.CollapseSpaces(raw)
	if raw == "" {
		return predicate.And()
	}

	var filter predicate.Predicate
	if tokens := Tokenize(raw); len(tokens) > 0 {
		clauses := make([]predicate.Predicate, 0, len(tokens))
		for _, tok := range tokens {
			clauses = append(clauses, predicate.AnyContains(predicate.SearchFields, tok))
		}
		filter = predicate.And(clauses...)
	} else {
		filter = predicate.AnyContains(predicate.SearchFields, raw)
	}

	if digits := canonical.Digits(raw); len(digits) >= predicate.MinDigits {
		filter = predicate.Or(filter, predicate.DigitsContains(predicate.FieldPhone, digits))
	}
	return filter
}
