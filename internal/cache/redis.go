package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient es el driver compartido entre réplicas del gateway.
type RedisClient struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// DialRedis conecta y hace ping. Addr acepta "host[:port]" o una URL
// redis:// (en ese caso Password y DB salen de la URL).
func DialRedis(ctx context.Context, cfg Config) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis %s: %w", opts.Addr, err)
	}
	return &RedisClient{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.DefaultTTL}, nil
}

func redisOptions(cfg Config) (*redis.Options, error) {
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		opts, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("cache: redis url: %w", err)
		}
		return opts, nil
	}
	addr := cfg.Addr
	switch {
	case addr == "":
		addr = "localhost:6379"
	case !strings.Contains(addr, ":"):
		addr += ":6379"
	}
	return &redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB}, nil
}

// Redis expone la conexión para el rate limiter.
func (c *RedisClient) Redis() *redis.Client { return c.rdb }

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (c *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

// Incr es atómico en el servidor, así que dos réplicas que invalidan a la
// vez nunca pisan la misma generación.
func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, c.prefix+key).Result()
}

func (c *RedisClient) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *RedisClient) Close() error { return c.rdb.Close() }
