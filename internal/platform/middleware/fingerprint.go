package middleware

import (
	"net/http"
	"strings"

	"trustdir/internal/device"
	"trustdir/pkg/requestcontext"
)

// HeaderFingerprint lets clients supply their own supporter fingerprint.
const HeaderFingerprint = "X-Fingerprint"

const maxFingerprintLen = 128

// Fingerprint stores the caller's supporter fingerprint in the request context.
// A client supplied X-Fingerprint wins; otherwise one is derived from the
// client metadata, so ClientMetadata must run first.
func Fingerprint(devices *device.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fp := strings.TrimSpace(r.Header.Get(HeaderFingerprint))
			if len(fp) > maxFingerprintLen {
				fp = fp[:maxFingerprintLen]
			}
			if fp == "" && devices != nil {
				fp = devices.ComputeFingerprint(requestcontext.ClientIP(ctx), requestcontext.UserAgent(ctx))
			}
			if fp != "" {
				ctx = requestcontext.WithFingerprint(ctx, fp)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
