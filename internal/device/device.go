// Package device derives supporter fingerprints for the endorsement counter.
//
// A fingerprint is a blake2b-256 digest of the client IP, browser name,
// browser major version and operating system. Minor browser updates keep the
// same fingerprint; a new IP or a major upgrade yields a new one.
package device

import (
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/blake2b"
)

type Service struct {
	enabled bool
}

// NewService returns a fingerprint service. A disabled service returns ""
// for every input, which the endorsement counter treats as "no fingerprint".
func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint returns the hex fingerprint for a caller. It returns ""
// when the service is disabled or there is nothing to identify the caller by.
func (s *Service) ComputeFingerprint(clientIP, userAgent string) string {
	if !s.enabled {
		return ""
	}
	clientIP = strings.TrimSpace(clientIP)
	userAgent = strings.TrimSpace(userAgent)
	if clientIP == "" && userAgent == "" {
		return ""
	}

	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	parts := []string{clientIP, name, majorVersion(version), ua.OS()}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether two fingerprints match and whether
// a previously seen one has drifted.
func (s *Service) CompareFingerprints(stored, current string) (matched bool, drift bool) {
	matched = stored == current
	return matched, stored != "" && !matched
}

// ParseUserAgent returns a display name such as "Chrome on Mac OS X".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	if platform := ua.Platform(); platform != "" && !strings.Contains(os, platform) {
		os = platform + " " + os
	}
	return strings.TrimSpace(name + " on " + strings.TrimSpace(os))
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}
