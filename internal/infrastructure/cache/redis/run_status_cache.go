package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/redis/go-redis/v9"
)

const latestRunKey = "selfmon:runs:latest"

// Options mirrors the Redis connection settings from config
type Options struct {
	Host         string
	Port         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RunStatusCache implements port.RunStatusCache using Redis
type RunStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunStatusCache creates a new Redis-backed status cache
func NewRunStatusCache(opts Options) (*RunStatusCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		MaxRetries:   3,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RunStatusCache{
		client: client,
		ttl:    opts.TTL,
	}, nil
}

// SaveLatest replaces the cached summary
func (c *RunStatusCache) SaveLatest(ctx context.Context, summary *dto.RunSummaryDTO) error {
	if summary == nil {
		return fmt.Errorf("run summary is required")
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, latestRunKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// GetLatest returns port.ErrStatusNotFound on a cache miss
func (c *RunStatusCache) GetLatest(ctx context.Context) (*dto.RunSummaryDTO, error) {
	val, err := c.client.Get(ctx, latestRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var summary dto.RunSummaryDTO
	if err := json.Unmarshal(val, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return &summary, nil
}

// Close closes the Redis connection
func (c *RunStatusCache) Close() error {
	return c.client.Close()
}

