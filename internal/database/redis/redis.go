package redis

import (
	"context"
	"fmt"
	"time"

	"hact-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client.
type Client struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// GetClient returns the underlying Redis client.
func (c *Client) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// SnapshotKey is the cache key holding a partner's serialized HACT
// snapshot. Key convention: hact--{vendor}--Snapshot.
func SnapshotKey(vendorNumber string) string {
	return fmt.Sprintf("hact--%s--Snapshot", vendorNumber)
}

// SetSnapshot caches a serialized snapshot for read paths.
func (c *Client) SetSnapshot(ctx context.Context, vendorNumber string, payload []byte) error {
	if err := c.client.Set(ctx, SnapshotKey(vendorNumber), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot payload, nil when absent.
func (c *Client) GetSnapshot(ctx context.Context, vendorNumber string) ([]byte, error) {
	data, err := c.client.Get(ctx, SnapshotKey(vendorNumber)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}
	return data, nil
}
