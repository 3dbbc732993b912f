package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client with a key prefix
type Client struct {
	client *redis.Client
	prefix string
}

// Options configures NewClient
type Options struct {
	// Addr is host:port or a redis:// URL
	Addr   string
	DB     int
	Prefix string
}

// NewClient connects and pings the server
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	var ropts *redis.Options
	if strings.HasPrefix(opts.Addr, "redis://") || strings.HasPrefix(opts.Addr, "rediss://") {
		parsed, err := redis.ParseURL(opts.Addr)
		if err != nil {
			return nil, err
		}
		ropts = parsed
	} else {
		addr := opts.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		ropts = &redis.Options{Addr: addr, DB: opts.DB}
	}

	c := &Client{client: redis.NewClient(ropts), prefix: opts.Prefix}
	if err := c.Ping(ctx); err != nil {
		_ = c.client.Close()
		return nil, err
	}
	return c, nil
}

func (r *Client) key(k string) string {
	return r.prefix + k
}

// Set stores value under key. A zero expiration keeps the key forever.
func (r *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, expiration).Err()
}

// Get returns the value of key; found is false when the key does not exist
func (r *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	value, err = r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *Client) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Client) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Client) Close() error {
	return r.client.Close()
}
