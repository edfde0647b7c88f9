// Package revocation keeps a registry of access tokens that were invalidated
// before their natural expiry. Entries live in Redis and expire together with
// the token they revoke, so the registry never needs cleaning.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces revocation keys.
const DefaultPrefix = "jwt:blacklist:"

// Registry records revoked tokens.
type Registry interface {
	// Revoke marks token as revoked for ttl. A non-positive ttl is a no-op.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Redis is a Registry shared by every service instance.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

var _ Registry = (*Redis)(nil)

// NewRedis returns a registry storing keys under prefix (DefaultPrefix when
// empty).
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// key stores the fingerprint rather than the raw bearer credential.
func (r *Redis) key(token string) string {
	return r.prefix + cryptox.FingerprintToken(token)
}

func (r *Redis) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation: set: %w", err)
	}
	return nil
}

func (r *Redis) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: exists: %w", err)
	}
	return n > 0, nil
}
