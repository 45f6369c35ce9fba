// Package channel keeps each user's registered delivery channel in Redis.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

const keyPrefix = "channel:"

// Registry stores one channel per user as a hash under channel:{userId}.
type Registry struct {
	client *redis.Client
}

// NewRegistry connects to redisURL and verifies the connection.
func NewRegistry(ctx context.Context, redisURL string) (*Registry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Registry{client: client}, nil
}

// NewRegistryWithClient wraps an existing client.
func NewRegistryWithClient(client *redis.Client) *Registry {
	return &Registry{client: client}
}

func key(userID string) string {
	return keyPrefix + userID
}

// Register replaces the user's channel.
func (r *Registry) Register(ctx context.Context, ch *domain.DeliveryChannel) error {
	if ch.UpdatedAt.IsZero() {
		ch.UpdatedAt = time.Now().UTC()
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(ch.UserID))
		pipe.HSet(ctx, key(ch.UserID),
			"token", ch.Token,
			"platform", string(ch.Platform),
			"updated_at", ch.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register channel for %s: %w", ch.UserID, err)
	}
	return nil
}

// Lookup returns the user's channel, or nil if none is registered.
func (r *Registry) Lookup(ctx context.Context, userID string) (*domain.DeliveryChannel, error) {
	fields, err := r.client.HGetAll(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup channel for %s: %w", userID, err)
	}
	if fields["token"] == "" {
		return nil, nil
	}

	ch := &domain.DeliveryChannel{
		UserID:   userID,
		Token:    fields["token"],
		Platform: domain.Platform(fields["platform"]),
	}
	if ts := fields["updated_at"]; ts != "" {
		if at, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ch.UpdatedAt = at
		}
	}
	return ch, nil
}

// Remove deletes the user's channel. Removing an absent channel is not an
// error.
func (r *Registry) Remove(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("remove channel for %s: %w", userID, err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *Registry) Close() error {
	return r.client.Close()
}
