// Package strings provides string slice helpers shared by normalization and search.
package strings

import (
	"strings"
)

// DedupeFunc applies norm to every value, drops empty results and keeps the
// first occurrence of each normalized value. Order is preserved.
func DedupeFunc(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := norm(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

// DedupeAndTrim removes duplicates and blank entries, trimming each element.
//
//	DedupeAndTrim([]string{"  wifi ", "parking", "wifi", ""})
//	// Returns: []string{"wifi", "parking"}
func DedupeAndTrim(values []string) []string {
	return DedupeFunc(values, strings.TrimSpace)
}

// DedupeAndTrimLower is like DedupeAndTrim but also lowercases each element.
func DedupeAndTrimLower(values []string) []string {
	return DedupeFunc(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}
