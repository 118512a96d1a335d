// Package redis opens the shared connection behind cross-instance presence.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"workguard/internal/platform/config"
)

// ErrNotConfigured is returned by Health on a nil client.
var ErrNotConfigured = errors.New("redis not configured")

// Client is a connected go-redis client. A nil *Client is valid and means
// presence falls back to the in-memory registry.
type Client struct {
	*redis.Client
	addr string
}

// Open connects and pings within cfg.DialTimeout. It returns nil, nil when
// cfg.URL is empty.
func Open(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "redis presence registry connected",
			"addr", opts.Addr,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}
	return &Client{Client: client, addr: opts.Addr}, nil
}

// clientOptions parses cfg.URL and layers the pool and timeout settings on
// top. Zero values keep the go-redis defaults.
func clientOptions(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (c *Client) Addr() string {
	if c == nil {
		return ""
	}
	return c.addr
}

// Health backs the "redis" entry of /health.
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return ErrNotConfigured
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
