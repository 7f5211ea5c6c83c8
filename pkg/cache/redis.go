package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/grademonitor-api/pkg/config"
)

const (
	clientName = "grademonitor"
	// Scheme lookups fall back to the gradebook, so a slow cache is worse
	// than a missing one.
	cacheTimeout = 250 * time.Millisecond
)

// Options builds client options from cfg. REDIS_URL wins over the discrete
// host settings when set.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opts.ClientName = clientName
	opts.ReadTimeout = cacheTimeout
	opts.WriteTimeout = cacheTimeout
	return opts, nil
}

// NewRedis connects the scheme cache client. Callers treat an error as
// "run without cache".
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
