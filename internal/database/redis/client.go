// Package redis provides the Redis client for the dashd pool dashboard. It
// holds the live round-share counters the share pipeline increments, the
// worker liveness keys fed from Kafka, and the stats cache backend.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lucidpool/dashd/internal/stats"
)

// Client wraps Redis operations for the dashboard
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a new Redis client
func NewClient(cfg *Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Round counters

// roundKey builds the live counter hash key for an algorithm suffix. The
// share pipeline writes per-worker fields into this hash as shares arrive.
func roundKey(suffix string) string {
	return "current_block_" + suffix
}

// RoundShares sums the live round-share counter hash for an algorithm
// suffix. Fields that fail to parse are skipped; a missing hash is an empty
// round, not an error.
func (c *Client) RoundShares(ctx context.Context, suffix string) (int64, error) {
	values, err := c.rdb.HVals(ctx, roundKey(suffix)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read round counter: %w", err)
	}

	var total int64
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

// RollRound archives the live counter hash when a block is found, renaming
// it under the block hash so the payout job can settle the round while a
// fresh counter accumulates. A missing counter means no shares landed this
// round, which is fine.
func (c *Client) RollRound(ctx context.Context, suffix, blockHash string) error {
	archived := fmt.Sprintf("block_shares_%s_%s", suffix, blockHash)
	err := c.rdb.Rename(ctx, roundKey(suffix), archived).Err()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		// RENAME fails with "no such key" when the round hash is empty
		if err.Error() == "ERR no such key" {
			return nil
		}
		return fmt.Errorf("failed to roll round counter: %w", err)
	}
	return nil
}

// Worker liveness

func onlineKey(address string) string {
	return "addr_online_" + address
}

// SetOnlineWorkers stores the latest liveness report for an address with a
// TTL, so workers that stop reporting age out on their own.
func (c *Client) SetOnlineWorkers(ctx context.Context, address string, pairs []stats.OnlinePair, ttl time.Duration) error {
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("failed to marshal online workers: %w", err)
	}

	if err := c.rdb.Set(ctx, onlineKey(address), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set online workers: %w", err)
	}
	return nil
}

// OnlineWorkers reads the current liveness report for an address. An expired
// or absent key means every worker is offline.
func (c *Client) OnlineWorkers(ctx context.Context, address string) ([]stats.OnlinePair, error) {
	data, err := c.rdb.Get(ctx, onlineKey(address)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get online workers: %w", err)
	}

	var pairs []stats.OnlinePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal online workers: %w", err)
	}
	return pairs, nil
}

// Stats cache backend

func cacheKey(key string) string {
	return "cache:" + key
}

// Get implements stats.Cache. A miss is (false, nil); only transport
// failures are errors.
func (c *Client) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return true, nil
}

// Set implements stats.Cache.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.rdb.Set(ctx, cacheKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}
