package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("invalid level falls back to info", func(t *testing.T) {
		l, sync, err := New("production", "loud")
		require.NoError(t, err)
		defer func() { _ = sync() }()
		assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
		assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("debug level enables debug", func(t *testing.T) {
		l, sync, err := New("development", "debug")
		require.NoError(t, err)
		defer func() { _ = sync() }()
		assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
	})
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.Info("dropped")
}
