package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// Connect opens a Redis client from a host:port address or a redis:// URL
// and checks it with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	if err := pingRedis(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return client, nil
}
