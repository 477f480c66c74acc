// Package redisstore keeps sessions in redis so several server instances can
// share them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sakif/agromarket/internal/session"
)

const keyPrefix = "agromarket:sess:"

// Backend implements session.Backend on a redis client. Expiry is delegated
// to redis key TTLs.
type Backend struct {
	client *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// Dial connects to addr and pings it once.
func Dial(ctx context.Context, addr, password string, db int) (*Backend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return New(client), nil
}

func (b *Backend) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := b.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}
	return data, nil
}

func (b *Backend) Put(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return b.Delete(ctx, id)
	}
	if err := b.client.Set(ctx, keyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}
