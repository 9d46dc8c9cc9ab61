// Package alert sends operator alerts to Sentry.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"trustdir/pkg/requestcontext"
)

// Sentry reports alerts as Sentry error events on its own hub.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry creates a client for opts. An empty DSN yields a client that
// drops every event, which keeps callers free of nil checks.
func NewSentry(opts sentry.ClientOptions) (*Sentry, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("init sentry client: %w", err)
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Alert captures message at error level with tags and the request id.
func (s *Sentry) Alert(ctx context.Context, message string, tags map[string]string) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTags(tags)
		if reqID := requestcontext.RequestID(ctx); reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		s.hub.CaptureMessage(message)
	})
}

// Flush waits up to timeout for queued events to be delivered.
func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
