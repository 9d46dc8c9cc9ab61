package testutil

import (
	"net/http"

	authmw "trustdir/pkg/platform/middleware/auth"
	"trustdir/pkg/requestcontext"
)

// WithActor adds an authenticated subject and role to the request context.
// This simulates what the auth middleware does for a valid bearer token.
// An empty role leaves the role unset.
func WithActor(req *http.Request, subject, role string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), subject)
	if role != "" {
		ctx = authmw.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

// WithClient sets the client address and user agent the metadata middleware would.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
