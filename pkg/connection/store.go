package connection

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// StateStore persists the breaker record so that concurrent short-lived
// workers share one open/closed decision. Implementations must be safe for
// concurrent use. The record carries its own TTL so a stuck-open record
// self-heals even if no worker ever closes it.
type StateStore interface {
	// Load returns the current record and whether one exists.
	Load(ctx context.Context) (Record, bool, error)

	// Save stores the record with the given TTL.
	Save(ctx context.Context, rec Record, ttl time.Duration) error
}

// MemoryStore is a StateStore held in process memory. Suitable for
// long-lived single-process deployments; multi-worker deployments should
// persist the record through the host's shared ephemeral store instead.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	expires time.Time
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements StateStore.
func (s *MemoryStore) Load(_ context.Context) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil || time.Now().After(s.expires) {
		return Record{}, false, nil
	}

	var rec Record
	if err := msgpack.Unmarshal(s.data, &rec); err != nil {
		// Treat a corrupt record as absent; the breaker starts closed.
		log.Warn().Err(err).Msg("Discarding corrupt breaker record")
		s.data = nil
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Save implements StateStore.
func (s *MemoryStore) Save(_ context.Context, rec Record, ttl time.Duration) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.expires = time.Now().Add(ttl)
	return nil
}
