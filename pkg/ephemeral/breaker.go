package ephemeral

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/publisherkit/pagecache/pkg/connection"
)

// breakerEntryName is the ephemeral entry holding the breaker record.
const breakerEntryName = "pagecache_breaker_state"

// BreakerStore persists the circuit breaker record through the host's
// ephemeral store. Because the host store outlives individual workers, the
// breaker decision survives process restarts and is shared across all
// concurrent workers, which an in-process store cannot provide.
type BreakerStore struct {
	fallback Fallback
}

var _ connection.StateStore = (*BreakerStore)(nil)

// NewBreakerStore creates a StateStore backed by the host's ephemeral store.
func NewBreakerStore(fallback Fallback) *BreakerStore {
	if fallback == nil {
		panic("fallback store cannot be nil")
	}
	return &BreakerStore{fallback: fallback}
}

// Load implements connection.StateStore.
func (s *BreakerStore) Load(ctx context.Context) (connection.Record, bool, error) {
	data, ok, err := s.fallback.Get(ctx, breakerEntryName)
	if err != nil || !ok {
		return connection.Record{}, false, err
	}

	var rec connection.Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		// A corrupt record means the breaker starts closed.
		log.Warn().Err(err).Str("entry", breakerEntryName).Msg("Discarding corrupt breaker record")
		return connection.Record{}, false, nil
	}
	return rec, true, nil
}

// Save implements connection.StateStore.
func (s *BreakerStore) Save(ctx context.Context, rec connection.Record, ttl time.Duration) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return s.fallback.Set(ctx, breakerEntryName, data, ttl)
}
