package cache

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Stats aggregates keyspace statistics for operators.
type Stats struct {
	// TotalKeys is the number of keys in all cache namespaces.
	TotalKeys int64

	// PerNamespace counts keys by namespace prefix.
	PerNamespace map[string]int64

	// MemoryBytes is the backend's reported used memory, or an in-process
	// estimate when the backend restricts the memory counter.
	MemoryBytes int64

	// MemoryEstimated is true when MemoryBytes was derived by summing
	// per-key sizes instead of reading the backend counter.
	MemoryEstimated bool
}

// Stats computes aggregate statistics across the cache namespaces.
// Backend failures are absorbed as empty statistics.
func (a *Accessor) Stats(ctx context.Context) Stats {
	st, _ := a.StatsStrict(ctx)
	return st
}

// StatsStrict computes aggregate statistics with scan failures surfaced:
// ok is false when any namespace could not be enumerated, so operators are
// never shown an empty keyspace that is really an unreachable backend.
// The per-namespace counts come from cursor scans. Memory comes from the
// backend's aggregate counter when available; restricted deployments fall
// back to summing per-key sizes so the statistics call never fails on the
// memory figure alone.
func (a *Accessor) StatsStrict(ctx context.Context) (Stats, bool) {
	st := Stats{PerNamespace: make(map[string]int64, len(Namespaces))}
	for _, ns := range Namespaces {
		st.PerNamespace[ns] = 0
	}

	var keys []string
	for _, ns := range Namespaces {
		nsKeys, ok := a.ScanKeysStrict(ctx, NamespacePattern(ns))
		if !ok {
			return Stats{}, false
		}
		st.PerNamespace[ns] = int64(len(nsKeys))
		st.TotalKeys += int64(len(nsKeys))
		keys = append(keys, nsKeys...)
	}

	if used, ok := a.usedMemory(ctx); ok {
		st.MemoryBytes = used
		return st, true
	}

	st.MemoryBytes = a.sumKeySizes(ctx, keys)
	st.MemoryEstimated = true
	return st, true
}

// usedMemory reads the backend's used_memory counter from the memory INFO
// section. Returns false when the command is restricted or unparsable.
func (a *Accessor) usedMemory(ctx context.Context) (int64, bool) {
	var used int64
	var found bool

	ok := a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
		info, err := client.Info(ctx, "memory").Result()
		if err != nil {
			return err
		}
		for _, line := range strings.Split(info, "\n") {
			line = strings.TrimSpace(line)
			if v, isPrefixed := strings.CutPrefix(line, "used_memory:"); isPrefixed {
				n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
				if err == nil {
					used = n
					found = true
				}
				return nil
			}
		}
		return nil
	}, a.bypass)

	return used, ok && found
}

// sumKeySizes estimates memory by summing the stored size of each key.
func (a *Accessor) sumKeySizes(ctx context.Context, keys []string) int64 {
	var total int64
	for _, key := range keys {
		k := key
		a.mgr.Execute(ctx, func(ctx context.Context, client *redis.Client) error {
			n, err := client.StrLen(ctx, k).Result()
			if err != nil {
				return err
			}
			total += n
			return nil
		}, a.bypass)
	}
	return total
}
