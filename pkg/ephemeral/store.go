// Package ephemeral redirects the host platform's short-lived named values
// into the cache backend, deferring to the platform's own fallback store
// for excluded names and when the backend is unavailable.
package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

// Fallback is the host platform's own short-lived named-value store,
// typically database-backed. The core treats it as an external collaborator.
type Fallback interface {
	Set(ctx context.Context, name string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Delete(ctx context.Context, name string) error
}

// Redirector routes ephemeral values: excluded names explicitly defer to
// the fallback store, everything else is redirected into the backend's
// ephemeral namespace. Backend failures degrade to the fallback so values
// survive a cache outage.
type Redirector struct {
	acc      *cache.Accessor
	excl     *exclusion.Engine
	fallback Fallback
	logger   zerolog.Logger
}

// NewRedirector creates an ephemeral value redirector.
func NewRedirector(acc *cache.Accessor, excl *exclusion.Engine, fallback Fallback) *Redirector {
	if acc == nil {
		panic("cache accessor cannot be nil")
	}
	if excl == nil {
		panic("exclusion engine cannot be nil")
	}
	if fallback == nil {
		panic("fallback store cannot be nil")
	}
	return &Redirector{
		acc:      acc,
		excl:     excl,
		fallback: fallback,
		logger:   log.With().Str("component", "ephemeral").Logger(),
	}
}

func key(name string) string {
	return cache.Key(cache.NamespaceEphemeral, name)
}

// Set stores a named value. Returns whether the value was persisted
// anywhere (backend or fallback).
func (r *Redirector) Set(ctx context.Context, name string, value []byte, ttl time.Duration) bool {
	if r.excl.ExcludesEphemeral(name) {
		return r.fallbackSet(ctx, name, value, ttl)
	}

	if r.acc.Set(ctx, key(name), value, ttl) {
		return true
	}

	// Backend down: the value still has to exist somewhere.
	r.logger.Warn().Str("name", name).Msg("Backend write failed - deferring ephemeral value to fallback store")
	return r.fallbackSet(ctx, name, value, ttl)
}

// Get returns a named value, consulting the backend first for redirected
// names and the fallback store otherwise.
func (r *Redirector) Get(ctx context.Context, name string) ([]byte, bool) {
	if r.excl.ExcludesEphemeral(name) {
		return r.fallbackGet(ctx, name)
	}

	if val, ok := r.acc.Get(ctx, key(name)); ok {
		return val, true
	}
	return r.fallbackGet(ctx, name)
}

// Delete removes a named value from both stores.
func (r *Redirector) Delete(ctx context.Context, name string) bool {
	removed := false
	if !r.excl.ExcludesEphemeral(name) {
		removed = r.acc.Delete(ctx, key(name))
	}
	if err := r.fallback.Delete(ctx, name); err != nil {
		r.logger.Warn().Err(err).Str("name", name).Msg("Fallback delete failed")
	}
	return removed
}

func (r *Redirector) fallbackSet(ctx context.Context, name string, value []byte, ttl time.Duration) bool {
	if err := r.fallback.Set(ctx, name, value, ttl); err != nil {
		r.logger.Warn().Err(err).Str("name", name).Msg("Fallback write failed")
		return false
	}
	return true
}

func (r *Redirector) fallbackGet(ctx context.Context, name string) ([]byte, bool) {
	val, ok, err := r.fallback.Get(ctx, name)
	if err != nil {
		r.logger.Warn().Err(err).Str("name", name).Msg("Fallback read failed")
		return nil, false
	}
	return val, ok
}

// MemoryFallback is an in-process Fallback with per-entry expiry. Stands in
// for the host's store in tests and single-process deployments.
type MemoryFallback struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryFallback creates an empty in-memory fallback store.
func NewMemoryFallback() *MemoryFallback {
	return &MemoryFallback{entries: make(map[string]memoryEntry)}
}

// Set implements Fallback. ttl <= 0 stores without expiry.
func (m *MemoryFallback) Set(_ context.Context, name string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries[name] = e
	return nil
}

// Get implements Fallback.
func (m *MemoryFallback) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, name)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Delete implements Fallback.
func (m *MemoryFallback) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
	return nil
}
