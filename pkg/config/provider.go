// Package config defines the boundary to the host platform's settings store.
// The core treats configuration as a flat key/value structure that is re-read
// on every operation; nothing in this package caches parsed values, so quick
// successive settings changes are always observed.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Provider supplies configuration values from the host platform.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Get returns the raw value for key and whether it is set.
	Get(key string) (string, bool)
}

// Configuration keys understood by the core.
const (
	// Connection settings
	KeyHost     = "cache.host"
	KeyPort     = "cache.port"
	KeyPassword = "cache.password"
	KeyTLS      = "cache.tls"
	KeyTimeout  = "cache.timeout"
	KeyPoolID   = "cache.pool_id"
	KeyDatabase = "cache.database"

	// Exclusion pattern lists (newline-delimited text)
	KeyExcludeKeys          = "exclude.keys"
	KeyExcludeEphemeral     = "exclude.ephemeral"
	KeyExcludeContent       = "exclude.content"
	KeyExcludeFragmentTypes = "exclude.fragment_types"

	// Invalidation policy
	KeyListingFragmentTypes = "invalidate.listing_types"
	KeyFlushAllOnUpdate     = "invalidate.flush_all"
	KeyVisibleStatuses      = "invalidate.visible_statuses"
)

// MapProvider is a Provider backed by a plain map. Useful for tests and for
// hosts that hand the core a settings snapshot.
type MapProvider map[string]string

// Get implements Provider.
func (m MapProvider) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// String returns the value for key, or def when unset.
func String(p Provider, key, def string) string {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// Int returns the integer value for key, or def when unset or unparsable.
func Int(p Provider, key string, def int) int {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Bool returns the boolean value for key, or def when unset.
// Accepts 1/0, true/false, on/off, yes/no.
func Bool(p Provider, key string, def bool) bool {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	case "0", "false", "off", "no":
		return false
	default:
		return def
	}
}

// Duration returns the duration value for key, or def when unset or unparsable.
// Accepts Go duration syntax ("250ms") or a bare number of seconds ("5").
func Duration(p Provider, key string, def time.Duration) time.Duration {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// List returns the comma-separated list value for key, trimmed, with empty
// elements dropped. Returns def when unset.
func List(p Provider, key string, def []string) []string {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
