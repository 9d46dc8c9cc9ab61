package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a client-supplied value containing ':' cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPRateLimitKey is the bucket key for one client address and class.
func NewIPRateLimitKey(ip string, class EndpointClass) string {
	return "rl:ip:" + SanitizeKeySegment(ip) + ":" + string(class)
}
