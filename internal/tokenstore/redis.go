package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// Redis is a Store backed by a Redis hash, one hash per gateway namespace.
// Multi-field writes go through a single HSET so concurrent readers never
// observe a token paired with a stale expiry. The Store interface is
// synchronous, so each call runs under a short internal timeout.
type Redis struct {
	client    *redis.Client
	namespace string
}

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldExpiresAt    = "expires_at"
	fieldUser         = "user"
)

// NewRedis creates a Redis-backed store
func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key() string {
	return fmt.Sprintf("session:%s", r.namespace)
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// SetTokens stores both tokens in one HSET
func (r *Redis) SetTokens(access, refresh string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	err := r.client.HSet(ctx, r.key(), map[string]any{
		fieldAccessToken:  access,
		fieldRefreshToken: refresh,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// SetExpiry stores the absolute expiry instant
func (r *Redis) SetExpiry(expiry time.Time) error {
	ctx, cancel := r.ctx()
	defer cancel()

	err := r.client.HSet(ctx, r.key(), fieldExpiresAt, expiry.UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return fmt.Errorf("failed to store expiry: %w", err)
	}
	return nil
}

// SetCredentials stores the full pair in one HSET
func (r *Redis) SetCredentials(creds Credentials) error {
	ctx, cancel := r.ctx()
	defer cancel()

	err := r.client.HSet(ctx, r.key(), map[string]any{
		fieldAccessToken:  creds.AccessToken,
		fieldRefreshToken: creds.RefreshToken,
		fieldExpiresAt:    creds.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// SetUser stores the serialized user snapshot
func (r *Redis) SetUser(snapshot json.RawMessage) error {
	ctx, cancel := r.ctx()
	defer cancel()

	err := r.client.HSet(ctx, r.key(), fieldUser, string(snapshot)).Err()
	if err != nil {
		return fmt.Errorf("failed to store user snapshot: %w", err)
	}
	return nil
}

func (r *Redis) getField(field string) (string, bool) {
	ctx, cancel := r.ctx()
	defer cancel()

	val, err := r.client.HGet(ctx, r.key(), field).Result()
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

// AccessToken returns the stored access token, if any
func (r *Redis) AccessToken() (string, bool) {
	return r.getField(fieldAccessToken)
}

// RefreshToken returns the stored refresh token, if any
func (r *Redis) RefreshToken() (string, bool) {
	return r.getField(fieldRefreshToken)
}

// ExpiresAt returns the stored expiry instant, if any
func (r *Redis) ExpiresAt() (time.Time, bool) {
	raw, ok := r.getField(fieldExpiresAt)
	if !ok {
		return time.Time{}, false
	}

	expiry, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return expiry, true
}

// User returns the stored user snapshot, if any
func (r *Redis) User() (json.RawMessage, bool) {
	raw, ok := r.getField(fieldUser)
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}

// Expired reports whether the stored expiry has passed
func (r *Redis) Expired() bool {
	expiry, ok := r.ExpiresAt()
	return expired(time.Now(), expiry, ok)
}

// Clear removes the whole session hash
func (r *Redis) Clear() error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
