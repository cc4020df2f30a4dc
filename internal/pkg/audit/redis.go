package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client used for counters
type RedisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisOptions selects the Redis server
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix (default: "paycat")
}

// hourlyKeyTTL keeps each hourly bucket a little longer than a day
const hourlyKeyTTL = 25 * time.Hour

// RedisCounters maintains running aggregate counters:
//
//	<prefix>:tx:total            received requests
//	<prefix>:tx:hour:YYYYMMDDHH  received requests per hour
//	<prefix>:rc:<code>           responses per field 39 value
type RedisCounters struct {
	client RedisClient
	prefix string
}

// OpenRedisCounters connects and pings the server
func OpenRedisCounters(ctx context.Context, opts RedisOptions) (*RedisCounters, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	return NewRedisCounters(client, opts.Prefix), nil
}

// NewRedisCounters wraps an existing client
func NewRedisCounters(client RedisClient, prefix string) *RedisCounters {
	if prefix == "" {
		prefix = "paycat"
	}
	return &RedisCounters{client: client, prefix: prefix}
}

func (r *RedisCounters) Name() string { return "redis" }

// Write bumps the counters affected by rec
func (r *RedisCounters) Write(ctx context.Context, rec Record) error {
	switch rec.Direction {
	case Received:
		if err := r.client.Incr(ctx, r.prefix+":tx:total").Err(); err != nil {
			return fmt.Errorf("incr total: %w", err)
		}
		hourKey := r.prefix + ":tx:hour:" + rec.Timestamp.UTC().Format("2006010215")
		n, err := r.client.Incr(ctx, hourKey).Result()
		if err != nil {
			return fmt.Errorf("incr hourly: %w", err)
		}
		if n == 1 {
			if err := r.client.Expire(ctx, hourKey, hourlyKeyTTL).Err(); err != nil {
				return fmt.Errorf("expire hourly: %w", err)
			}
		}

	case Sent:
		code := rec.ResponseCode
		if code == "" {
			code = "none"
		}
		if err := r.client.Incr(ctx, r.prefix+":rc:"+code).Err(); err != nil {
			return fmt.Errorf("incr response code: %w", err)
		}
	}
	return nil
}

func (r *RedisCounters) Close() error {
	return r.client.Close()
}
