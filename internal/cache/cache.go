// Package cache keeps the latest written price and the last run summary in
// Redis so the HTTP API can answer without hitting the datastore.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

const defaultTTL = 7 * 24 * time.Hour

// Cache stores price snapshots in Redis
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Cache{client: client, ttl: defaultTTL}, nil
}

func latestKey(symbol string) string {
	return "stock:latest:" + strings.ToUpper(symbol)
}

func runKey(symbol string) string {
	return "stock:last_run:" + strings.ToUpper(symbol)
}

// SetLatest stores the latest record for its symbol
func (c *Cache) SetLatest(ctx context.Context, p models.DailyPrice) error {
	return c.set(ctx, latestKey(p.Symbol), p)
}

// GetLatest returns the cached latest record, or nil on a miss
func (c *Cache) GetLatest(ctx context.Context, symbol string) (*models.DailyPrice, error) {
	var p models.DailyPrice
	ok, err := c.get(ctx, latestKey(symbol), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SetLastRun stores the summary of the most recent run
func (c *Cache) SetLastRun(ctx context.Context, r models.RunResult) error {
	return c.set(ctx, runKey(r.Symbol), r)
}

// GetLastRun returns the last run summary, or nil on a miss
func (c *Cache) GetLastRun(ctx context.Context, symbol string) (*models.RunResult, error) {
	var r models.RunResult
	ok, err := c.get(ctx, runKey(symbol), &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
