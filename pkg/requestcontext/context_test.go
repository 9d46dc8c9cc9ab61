package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessorsDefaultToZeroValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.Empty(t, Fingerprint(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Actor(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "curl/8.0")
	ctx = WithFingerprint(ctx, "fp-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithActor(ctx, "admin@example.com")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "fp-1", Fingerprint(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "admin@example.com", Actor(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
