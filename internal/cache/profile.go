package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gymkey/gymkey/internal/model"
)

const (
	// profileCachePrefix is the Redis key prefix for resolved profiles.
	profileCachePrefix = "identity:profile:"
	// profileCacheTTL bounds how long a revoked credential keeps working.
	profileCacheTTL = 5 * time.Minute
)

// TokenCacheKey derives the cache key for a bearer token.
// Tokens are never stored raw; only a SHA-256 digest is used.
func TokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GetProfile retrieves a cached identity profile by cache key.
// Returns nil on a miss; cache failures are treated as misses.
func (c *Cache) GetProfile(ctx context.Context, cacheKey string) (*model.Profile, error) {
	key := profileCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var profile model.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &profile, nil
}

// SetProfile caches a resolved identity profile.
func (c *Cache) SetProfile(ctx context.Context, cacheKey string, profile *model.Profile) error {
	key := profileCachePrefix + cacheKey

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, profileCacheTTL).Err()
}
