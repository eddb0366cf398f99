package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/publisherkit/pagecache/pkg/connection"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

// DefaultChunkSize bounds the number of keys per bulk-delete command.
const DefaultChunkSize = 1000

// scanCount is the per-iteration COUNT hint for cursor scans.
const scanCount = 1000

// Accessor is the exclusion-checked cache access layer. Every operation
// degrades to miss/no-op semantics: an excluded key, an open breaker or a
// backend failure all look like "the cache simply has nothing", so callers
// fall through to the host platform's own storage.
type Accessor struct {
	mgr    *connection.Manager
	excl   *exclusion.Engine
	logger zerolog.Logger

	// bypass is true when the backend is local/trusted per the bypass policy.
	bypass bool
}

// NewAccessor creates the cache access layer. Connections to a loopback or
// private-network backend bypass the breaker.
func NewAccessor(mgr *connection.Manager, excl *exclusion.Engine) *Accessor {
	if mgr == nil {
		panic("connection manager cannot be nil")
	}
	if excl == nil {
		panic("exclusion engine cannot be nil")
	}
	return &Accessor{
		mgr:    mgr,
		excl:   excl,
		logger: log.With().Str("component", "cache").Logger(),
		bypass: mgr.Local(),
	}
}

// Bypass returns a view of the accessor whose operations always attempt the
// backend regardless of breaker state. Handed to administrative and
// diagnostic callers so operators can always test and repair connectivity.
func (a *Accessor) Bypass() *Accessor {
	b := *a
	b.bypass = true
	return &b
}

// Get returns the value for key. An excluded key is a guaranteed miss;
// backend failures are absorbed as misses.
func (a *Accessor) Get(ctx context.Context, key string) ([]byte, bool) {
	if a.excl.ExcludesKey(key) {
		cacheExcluded.WithLabelValues("get").Inc()
		return nil, false
	}

	var val []byte
	var found bool
	ok := a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
		data, err := client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		val = data
		found = true
		return nil
	}, a.bypass)

	if !ok {
		cacheErrors.WithLabelValues("get").Inc()
		cacheMisses.Inc()
		return nil, false
	}
	if !found {
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return val, true
}

// Set stores value under key with the given TTL. Returns false for excluded
// keys (silent no-op) and for backend failures.
func (a *Accessor) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if a.excl.ExcludesKey(key) {
		cacheExcluded.WithLabelValues("set").Inc()
		a.logger.Debug().Str("key", key).Msg("Key excluded from caching")
		return false
	}

	ok := a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
		return client.Set(ctx, key, value, ttl).Err()
	}, a.bypass)

	if !ok {
		cacheErrors.WithLabelValues("set").Inc()
	}
	return ok
}

// Delete removes key. Excluded keys are a no-op returning false.
func (a *Accessor) Delete(ctx context.Context, key string) bool {
	if a.excl.ExcludesKey(key) {
		cacheExcluded.WithLabelValues("delete").Inc()
		return false
	}

	var removed bool
	ok := a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
		n, err := client.Del(ctx, key).Result()
		if err != nil {
			return err
		}
		removed = n > 0
		return nil
	}, a.bypass)

	if !ok {
		cacheErrors.WithLabelValues("delete").Inc()
		return false
	}
	return removed
}

// Exists reports whether key is present. Excluded keys never exist.
func (a *Accessor) Exists(ctx context.Context, key string) bool {
	if a.excl.ExcludesKey(key) {
		cacheExcluded.WithLabelValues("exists").Inc()
		return false
	}

	var present bool
	ok := a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
		n, err := client.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		present = n > 0
		return nil
	}, a.bypass)

	return ok && present
}

// ScanKeys enumerates all keys matching pattern using the cursor-based scan
// primitive, iterating until the cursor returns to zero. The keyspace is
// shared with unrelated consumers, so a blocking list-all command is never
// used. Results are de-duplicated; a scan can report a key more than once.
// Backend failures are absorbed as an empty result.
func (a *Accessor) ScanKeys(ctx context.Context, pattern string) []string {
	keys, _ := a.ScanKeysStrict(ctx, pattern)
	return keys
}

// ScanKeysStrict is ScanKeys with the failure surfaced: ok is false when the
// scan could not complete. Administrative callers must not mistake a failed
// enumeration for an empty keyspace.
func (a *Accessor) ScanKeysStrict(ctx context.Context, pattern string) (keys []string, ok bool) {
	ok = a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
		seen := make(map[string]struct{})
		keys = keys[:0]

		var cursor uint64
		for {
			batch, next, err := client.Scan(ctx, cursor, pattern, scanCount).Result()
			if err != nil {
				return err
			}
			for _, k := range batch {
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	}, a.bypass)

	if !ok {
		cacheErrors.WithLabelValues("scan").Inc()
		return nil, false
	}

	scannedKeys.Observe(float64(len(keys)))
	a.logger.Debug().Str("pattern", pattern).Int("keys", len(keys)).Msg("Keyspace scan complete")
	return keys, true
}

// DeleteKeysChunked removes the given keys in fixed-size batches, one
// bulk-delete command per batch, and returns the summed deleted count.
// chunkSize <= 0 uses DefaultChunkSize. No atomicity across chunks; failed
// chunks are absorbed.
func (a *Accessor) DeleteKeysChunked(ctx context.Context, keys []string, chunkSize int) int64 {
	deleted, _ := a.DeleteKeysChunkedStrict(ctx, keys, chunkSize)
	return deleted
}

// DeleteKeysChunkedStrict is DeleteKeysChunked with the failure surfaced:
// ok is false when any chunk could not be deleted. The count still reflects
// the chunks that succeeded.
func (a *Accessor) DeleteKeysChunkedStrict(ctx context.Context, keys []string, chunkSize int) (int64, bool) {
	if len(keys) == 0 {
		return 0, true
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var deleted int64
	allOK := true
	for start := 0; start < len(keys); start += chunkSize {
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		ok := a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
			n, err := client.Del(ctx, chunk...).Result()
			if err != nil {
				return err
			}
			deleted += n
			return nil
		}, a.bypass)
		if !ok {
			cacheErrors.WithLabelValues("delete_chunk").Inc()
			allOK = false
		}
	}

	keysDeleted.Add(float64(deleted))
	return deleted, allOK
}
