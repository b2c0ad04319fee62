package coalesce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "scoreboard:sweep:pending:"

// Redis shares pending-sweep marks between processes with SET NX PX.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to url and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// TryMark implements Coalescer.
func (r *Redis) TryMark(ctx context.Context, courseID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+courseID, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark sweep %s: %w", courseID, err)
	}
	return ok, nil
}

// Clear implements Coalescer.
func (r *Redis) Clear(ctx context.Context, courseID string) error {
	if err := r.client.Del(ctx, keyPrefix+courseID).Err(); err != nil {
		return fmt.Errorf("clear sweep %s: %w", courseID, err)
	}
	return nil
}

// Close implements Coalescer.
func (r *Redis) Close() error {
	return r.client.Close()
}

var (
	_ Coalescer = (*Memory)(nil)
	_ Coalescer = (*Redis)(nil)
)
