package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// Client is a thin Redis cache used for idempotent order creation.
type Client struct {
	client      *redis.Client
	serviceName string
}

// MustNewClient creates a new Redis client from the redis config section.
func MustNewClient() *Client {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		panic("redis.addr is not set in config")
	}

	serviceName := viper.GetString("otel.service_name")
	if serviceName == "" {
		serviceName = "order-svc"
	}

	c := NewClient(addr, serviceName)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		panic(err)
	}

	return c
}

// NewClient creates a client without checking connectivity.
func NewClient(addr, serviceName string) *Client {
	return &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		}),
		serviceName: serviceName,
	}
}

// Set stores value under key for ttl.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	return nil
}

// SetNX stores value under key for ttl only if the key is absent. It reports
// whether the value was stored.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve cache key %s: %w", key, err)
	}

	return ok, nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}

	return nil
}

// Get returns the value under key, or "" when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	return value, nil
}

// GenerateKey namespaces key by service and operation.
func (c *Client) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", c.serviceName, operation, key)
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Client) Close() error {
	return c.client.Close()
}
