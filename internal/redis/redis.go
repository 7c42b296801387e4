package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const connectTimeout = 2 * time.Second

// Client wraps the go-redis client so the rest of the module depends
// on this package rather than the driver.
type Client struct {
	*goredis.Client
}

// New connects to Redis and fails fast if the server is unreachable.
func New(addr, password string) (*Client, error) {
	c := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &Client{Client: c}, nil
}
