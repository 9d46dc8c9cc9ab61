// Package redis builds the shared go-redis client used by the result cache
// and the rate limiter.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"trustdir/internal/platform/config"
)

// SlowCommandThreshold is the duration above which a command is logged.
const SlowCommandThreshold = 100 * time.Millisecond

type Client struct {
	*redis.Client
}

// New parses cfg.URL, applies pool settings and pings the server. An empty
// URL returns nil, nil so callers can run without Redis. A non-nil logger
// gets a warning for every command slower than SlowCommandThreshold.
func New(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if logger != nil {
		client.AddHook(slowLog{logger: logger, threshold: SlowCommandThreshold})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	for _, d := range []struct {
		dst *time.Duration
		v   time.Duration
	}{
		{&opts.DialTimeout, cfg.DialTimeout},
		{&opts.ReadTimeout, cfg.ReadTimeout},
		{&opts.WriteTimeout, cfg.WriteTimeout},
	} {
		if d.v > 0 {
			*d.dst = d.v
		}
	}
	return opts, nil
}

// Health pings the server; /healthz uses it.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

type slowLog struct {
	logger    *slog.Logger
	threshold time.Duration
}

func (h slowLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h slowLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		if d := time.Since(start); d > h.threshold {
			h.logger.WarnContext(ctx, "slow redis command", "command", cmd.Name(), "duration_ms", d.Milliseconds())
		}
		return err
	}
}

func (h slowLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if d := time.Since(start); d > h.threshold {
			h.logger.WarnContext(ctx, "slow redis pipeline", "commands", len(cmds), "duration_ms", d.Milliseconds())
		}
		return err
	}
}
