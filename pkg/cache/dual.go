package cache

import (
	"context"
	"time"
)

// Transform converts a stored value into its optimized form (for example a
// minified or compressed body). Supplied by a non-core collaborator; a
// failing transform must never prevent caching of the original.
type Transform func([]byte) ([]byte, error)

// SetDual stores both the transformed value under key and the original
// under the related raw key, sharing one TTL. When the transform fails,
// only the original is stored so the read path still has a fallback.
// Returns false when the key is excluded or both writes fail.
func (a *Accessor) SetDual(ctx context.Context, key string, original []byte, transform Transform, ttl time.Duration) bool {
	if a.excl.ExcludesKey(key) {
		cacheExcluded.WithLabelValues("set").Inc()
		return false
	}

	storedRaw := a.Set(ctx, RawKey(key), original, ttl)

	if transform == nil {
		return storedRaw
	}

	transformed, err := transform(original)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Transform failed - caching original only")
		return storedRaw
	}

	storedTransformed := a.Set(ctx, key, transformed, ttl)
	return storedTransformed || storedRaw
}

// GetPreferred returns the transformed value under key when present,
// falling back to the untransformed original under the raw key.
func (a *Accessor) GetPreferred(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := a.Get(ctx, key); ok {
		return val, true
	}
	return a.Get(ctx, RawKey(key))
}
