package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink mirrors sessions into Redis so they survive restarts and
// can be inspected out-of-process. The in-memory registry remains the
// source of truth; entries here carry a TTL matching the session.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink creates a Redis-backed session sink.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client: client,
		prefix: "session:",
	}
}

func (r *RedisSink) key(tok string) string {
	return r.prefix + tok
}

func (r *RedisSink) Put(ctx context.Context, s Session) error {
	if s.Token == "" || s.Username == "" {
		return fmt.Errorf("session: missing token or username")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return r.client.Del(ctx, r.key(s.Token)).Err()
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.key(s.Token), data, ttl).Err()
}

func (r *RedisSink) Remove(ctx context.Context, tok string) error {
	return r.client.Del(ctx, r.key(tok)).Err()
}
