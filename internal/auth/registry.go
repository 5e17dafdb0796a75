package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CredentialRegistry tracks issued refresh credentials in Redis so
// logout can invalidate them and operators can see active logins.
// Access tokens are deliberately not tracked: their permission payload
// stays valid until expiry (documented staleness).
type CredentialRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCredentialRegistry constructs a CredentialRegistry.
func NewCredentialRegistry(client *redis.Client, ttl time.Duration) *CredentialRegistry {
	return &CredentialRegistry{client: client, ttl: ttl}
}

// Register stores the refresh credential id for the user.
func (r *CredentialRegistry) Register(ctx context.Context, jti string, userID int64) error {
	return r.client.Set(ctx, r.key(jti), strconv.FormatInt(userID, 10), r.ttl).Err()
}

// Active reports whether the credential id is still registered.
func (r *CredentialRegistry) Active(ctx context.Context, jti string) (bool, error) {
	if _, err := r.client.Get(ctx, r.key(jti)).Result(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Revoke removes the credential id; refreshing with it fails
// afterwards.
func (r *CredentialRegistry) Revoke(ctx context.Context, jti string) error {
	if err := r.client.Del(ctx, r.key(jti)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (r *CredentialRegistry) key(jti string) string {
	return "credential:" + jti
}
