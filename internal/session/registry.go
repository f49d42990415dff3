// Package session tracks the currently valid refresh token per user.
//
// The registry is the single source of truth for "is this refresh token
// still usable". It lives in Redis, never in process memory, so every
// server instance observes the same session state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"

	"animelist_service/internal/config"
)

type Registry interface {
	// Register stores jti as the active refresh token for the user,
	// overwriting any prior value. Last writer wins.
	Register(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error

	// IsActive reports whether jti is the currently stored token for the
	// user. Both "no session" and "superseded session" are false.
	IsActive(ctx context.Context, userID uuid.UUID, jti string) (bool, error)

	// Revoke deletes the stored token. Idempotent.
	Revoke(ctx context.Context, userID uuid.UUID) error
}

func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func sessionKey(userID uuid.UUID) string {
	return "session:" + userID.String()
}

func (r *RedisRegistry) Register(ctx context.Context, userID uuid.UUID, jti string, ttl time.Duration) error {
	const op = "session.RedisRegistry.Register"

	if err := r.client.Set(ctx, sessionKey(userID), jti, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRegistry) IsActive(ctx context.Context, userID uuid.UUID, jti string) (bool, error) {
	const op = "session.RedisRegistry.IsActive"

	stored, err := r.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return stored == jti, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, userID uuid.UUID) error {
	const op = "session.RedisRegistry.Revoke"

	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
