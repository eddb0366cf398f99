package fragment

import (
	"context"
	"time"

	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

// DefaultTTL is the fragment cache lifetime when none is configured.
const DefaultTTL = time.Hour

// Renderer is the rendering pipeline's per-fragment boundary. The pipeline
// calls Lookup once per fragment render; a miss instructs it to render
// normally and submit the result afterwards.
type Renderer struct {
	acc  *cache.Accessor
	excl *exclusion.Engine
	ttl  time.Duration
}

// NewRenderer creates a fragment renderer boundary. ttl <= 0 uses DefaultTTL.
func NewRenderer(acc *cache.Accessor, excl *exclusion.Engine, ttl time.Duration) *Renderer {
	if acc == nil {
		panic("cache accessor cannot be nil")
	}
	if excl == nil {
		panic("exclusion engine cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Renderer{acc: acc, excl: excl, ttl: ttl}
}

// Lookup returns the cached substitute for a fragment render. Fragments of
// an excluded type are a guaranteed miss, so they render fresh every time.
func (r *Renderer) Lookup(ctx context.Context, key Key) ([]byte, bool) {
	if r.excl.ExcludesFragmentType(key.Type) {
		return nil, false
	}
	return r.acc.Get(ctx, key.String())
}

// Submit caches a freshly rendered fragment. Excluded types are a silent
// no-op. Returns whether the fragment was cached.
func (r *Renderer) Submit(ctx context.Context, key Key, rendered []byte) bool {
	if r.excl.ExcludesFragmentType(key.Type) {
		return false
	}
	return r.acc.Set(ctx, key.String(), rendered, r.ttl)
}
