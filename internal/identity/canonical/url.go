package canonical

import (
	"net/url"
	"strings"
)

// SocialHosts are the profile domains whose first path segment is a handle.
var SocialHosts = map[string]struct{}{
	"instagram.com": {},
	"instagr.am":    {},
}

const profileBase = "https://instagram.com/"

// Handle strips a leading '@', lower-cases and trims. A profile URL on a
// known social host yields its first path segment.
func Handle(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if seg, ok := profileSegment(s); ok {
		s = seg
	}
	s = strings.TrimPrefix(s, "@")
	s = strings.Trim(s, "/")
	return strings.ToLower(strings.TrimSpace(s))
}

// ProfileURL turns a bare handle into an instagram profile URL and prefixes
// "https://" on URLs that lack a scheme.
func ProfileURL(handleOrURL string) string {
	s := strings.TrimSpace(handleOrURL)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		return s
	}
	if strings.Contains(s, "/") {
		return "https://" + s
	}
	h := Handle(s)
	if h == "" {
		return ""
	}
	return profileBase + h
}

// Host returns the lower-cased hostname of a URL or bare domain with a
// leading "www." removed. Unparseable input yields "".
func Host(urlOrDomain string) string {
	s := strings.TrimSpace(urlOrDomain)
	if s == "" {
		return ""
	}
	u, err := parseLoose(s)
	if err != nil {
		return ""
	}
	h := strings.ToLower(u.Hostname())
	h = strings.TrimPrefix(h, "www.")
	if h == "" || strings.ContainsAny(h, " \t") {
		return ""
	}
	return h
}

// IsSocialHost reports whether host (www./m. tolerated) is a known profile domain.
func IsSocialHost(host string) bool {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	_, ok := SocialHosts[host]
	return ok
}

func profileSegment(s string) (string, bool) {
	if !strings.Contains(s, "/") {
		return "", false
	}
	u, err := parseLoose(s)
	if err != nil || !IsSocialHost(u.Hostname()) {
		return "", false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return seg, true
		}
	}
	return "", false
}

func parseLoose(s string) (*url.URL, error) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return url.Parse(s)
}
