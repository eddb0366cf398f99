// Package page caches full rendered documents for the host's rendering
// pipeline. The pipeline asks Lookup for a short-circuit response before
// rendering and submits the finished body through Store afterwards.
package page

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

// DefaultTTL is the full-document cache lifetime when none is configured.
const DefaultTTL = time.Hour

// Descriptor identifies one cacheable document render.
type Descriptor struct {
	// Path is the request path.
	Path string

	// Query is the normalized query string ("" when absent).
	Query string

	// Authenticated is the viewer's login state. Logged-in views are keyed
	// separately from anonymous ones.
	Authenticated bool

	// Variant is the device/view variant.
	Variant string
}

// Key derives the deterministic cache key for the descriptor.
func (d Descriptor) Key() string {
	var h xxhash.Digest
	_, _ = h.WriteString(d.Path)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(d.Query)
	_, _ = h.WriteString("\x00")
	if d.Authenticated {
		_, _ = h.WriteString("auth")
	} else {
		_, _ = h.WriteString("anon")
	}
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(d.Variant)

	return cache.Key(cache.NamespacePage, fmt.Sprintf("%016x", h.Sum64()))
}

// Cache is the rendering pipeline's full-document cache boundary.
type Cache struct {
	acc       *cache.Accessor
	excl      *exclusion.Engine
	transform cache.Transform
	ttl       time.Duration
	logger    zerolog.Logger
}

// Config holds the page cache configuration.
type Config struct {
	// Accessor is the underlying cache access layer. Required.
	Accessor *cache.Accessor

	// Engine evaluates content exclusions. Required.
	Engine *exclusion.Engine

	// Transform optionally optimizes stored bodies (minify, compress).
	// Supplied by a non-core collaborator; may be nil.
	Transform cache.Transform

	// TTL is the document lifetime. Defaults to DefaultTTL.
	TTL time.Duration
}

// New creates the page cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Accessor == nil {
		return nil, fmt.Errorf("cache accessor is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("exclusion engine is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Cache{
		acc:       cfg.Accessor,
		excl:      cfg.Engine,
		transform: cfg.Transform,
		ttl:       cfg.TTL,
		logger:    log.With().Str("component", "page").Logger(),
	}, nil
}

// Lookup returns a previously cached body for an immediate short-circuit
// response, or nothing when the caller must render normally. Prefers the
// transformed variant and falls back to the stored original.
func (c *Cache) Lookup(ctx context.Context, d Descriptor) ([]byte, bool) {
	return c.acc.GetPreferred(ctx, d.Key())
}

// Store submits a freshly rendered body. Bodies containing a configured
// exclusion substring are never cached; the caller serves the render
// directly either way. Returns whether the body was cached.
func (c *Cache) Store(ctx context.Context, d Descriptor, body []byte) bool {
	if c.excl.ExcludesContent(string(body)) {
		c.logger.Debug().Str("path", d.Path).Msg("Body matched a content exclusion - not cached")
		return false
	}
	return c.acc.SetDual(ctx, d.Key(), body, c.transform, c.ttl)
}

// Invalidate removes the cached document for a descriptor, both variants.
func (c *Cache) Invalidate(ctx context.Context, d Descriptor) bool {
	key := d.Key()
	removed := c.acc.Delete(ctx, key)
	if c.acc.Delete(ctx, cache.RawKey(key)) {
		removed = true
	}
	return removed
}
