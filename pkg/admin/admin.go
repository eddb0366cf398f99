// Package admin exposes the operator-facing diagnostic surface: connection
// status, round-trip self-test, purges and aggregate statistics. Unlike the
// request path, failures here are surfaced explicitly: a silently failed
// "clear cache" would mislead the operator. Every operation bypasses the
// circuit breaker so connectivity can be tested and repaired while the
// breaker is protecting ordinary traffic.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/connection"
)

// selfTestKey is the throwaway key used by the round-trip self-test. The
// double-underscore name is reserved so the diagnostic never collides with a
// real ephemeral value stored by the host.
const selfTestKey = "eph:__selftest__"

// Result is the outcome of an administrative operation.
type Result struct {
	// OK reports whether the operation succeeded.
	OK bool

	// Detail is operator-readable status or error text.
	Detail string

	// Deleted is the number of keys removed, for purge operations.
	Deleted int64
}

// Surface is the administrative/diagnostic entry point.
type Surface struct {
	mgr    *connection.Manager
	acc    *cache.Accessor
	logger zerolog.Logger
}

// New creates the administrative surface. All operations run with the
// breaker bypassed.
func New(mgr *connection.Manager, acc *cache.Accessor) *Surface {
	if mgr == nil {
		panic("connection manager cannot be nil")
	}
	if acc == nil {
		panic("cache accessor cannot be nil")
	}
	return &Surface{
		mgr:    mgr,
		acc:    acc.Bypass(),
		logger: log.With().Str("component", "admin").Logger(),
	}
}

// Status probes the backend connection.
func (s *Surface) Status(ctx context.Context) connection.Status {
	return s.mgr.Status(ctx)
}

// SelfTest performs a write/read/delete round trip against the backend and
// reports exactly where it failed.
func (s *Surface) SelfTest(ctx context.Context) Result {
	client := s.mgr.Acquire(ctx, false, true)
	if client == nil {
		return Result{Detail: "backend unreachable"}
	}

	want := fmt.Sprintf("selftest-%d", time.Now().UnixNano())

	if err := client.Set(ctx, selfTestKey, want, time.Minute).Err(); err != nil {
		return Result{Detail: fmt.Sprintf("write failed: %v", err)}
	}

	got, err := client.Get(ctx, selfTestKey).Result()
	if err != nil {
		return Result{Detail: fmt.Sprintf("read failed: %v", err)}
	}
	if got != want {
		return Result{Detail: fmt.Sprintf("read mismatch: wrote %q, read %q", want, got)}
	}

	if err := client.Del(ctx, selfTestKey).Err(); err != nil {
		return Result{Detail: fmt.Sprintf("delete failed: %v", err)}
	}

	return Result{OK: true, Detail: "write/read/delete round trip succeeded"}
}

// Purge removes cached entries. An empty scope or "all" purges every cache
// namespace; otherwise scope names a single namespace.
func (s *Surface) Purge(ctx context.Context, scope string) Result {
	var patterns []string
	switch scope {
	case "", "all":
		for _, ns := range cache.Namespaces {
			patterns = append(patterns, cache.NamespacePattern(ns))
		}
	default:
		valid := false
		for _, ns := range cache.Namespaces {
			if scope == ns {
				valid = true
				break
			}
		}
		if !valid {
			return Result{Detail: fmt.Sprintf("unknown namespace %q", scope)}
		}
		patterns = []string{cache.NamespacePattern(scope)}
	}

	// The request path hides backend failures behind miss semantics; an
	// operator-requested purge must not. A failed scan here is not an empty
	// keyspace, and a failed delete is not a clean cache.
	var deleted int64
	for _, pattern := range patterns {
		keys, ok := s.acc.ScanKeysStrict(ctx, pattern)
		if !ok {
			s.logger.Error().Str("scope", scope).Str("pattern", pattern).Msg("Purge failed - keyspace scan did not complete")
			return Result{Detail: fmt.Sprintf("scan failed for %s after removing %d keys", pattern, deleted), Deleted: deleted}
		}

		n, ok := s.acc.DeleteKeysChunkedStrict(ctx, keys, cache.DefaultChunkSize)
		deleted += n
		if !ok {
			s.logger.Error().Str("scope", scope).Str("pattern", pattern).Msg("Purge failed - bulk delete did not complete")
			return Result{Detail: fmt.Sprintf("delete failed for %s after removing %d keys", pattern, deleted), Deleted: deleted}
		}
	}

	s.logger.Info().Str("scope", scope).Int64("deleted", deleted).Msg("Cache purged")
	return Result{OK: true, Detail: fmt.Sprintf("purged %d keys", deleted), Deleted: deleted}
}

// Stats returns aggregate cache statistics. A backend failure is reported
// explicitly, never as an empty keyspace.
func (s *Surface) Stats(ctx context.Context) (cache.Stats, Result) {
	stats, ok := s.acc.StatsStrict(ctx)
	if !ok {
		return cache.Stats{}, Result{Detail: "backend unreachable"}
	}
	return stats, Result{OK: true, Detail: "ok"}
}
