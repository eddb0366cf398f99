package fragment_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/publisherkit/pagecache/internal/testutil"
	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/config"
	"github.com/publisherkit/pagecache/pkg/exclusion"
	"github.com/publisherkit/pagecache/pkg/fragment"
)

func newRenderer(t *testing.T, settings config.MapProvider) *fragment.Renderer {
	t.Helper()

	mr := testutil.StartRedis(t)
	mgr := testutil.NewManager(t, mr)
	excl := exclusion.NewEngine(settings)
	return fragment.NewRenderer(cache.NewAccessor(mgr, excl), excl, 0)
}

func TestRenderer_SubmitAndLookup(t *testing.T) {
	r := newRenderer(t, config.MapProvider{})
	ctx := context.Background()

	key := fragment.Key{
		Type:     "recent-posts",
		Attrs:    map[string]string{"count": "5"},
		ObjectID: 0,
		Context:  fragment.Context{Variant: "desktop"},
	}
	rendered := []byte("<ul><li>post</li></ul>")

	if _, ok := r.Lookup(ctx, key); ok {
		t.Fatal("unexpected hit before submit")
	}
	if !r.Submit(ctx, key, rendered) {
		t.Fatal("submit failed")
	}

	got, ok := r.Lookup(ctx, key)
	if !ok || !bytes.Equal(got, rendered) {
		t.Errorf("lookup = %q, %v; want the submitted markup", got, ok)
	}
}

func TestRenderer_ExcludedType(t *testing.T) {
	r := newRenderer(t, config.MapProvider{
		config.KeyExcludeFragmentTypes: "live-*",
	})
	ctx := context.Background()

	key := fragment.Key{Type: "live-scores"}

	if r.Submit(ctx, key, []byte("scores")) {
		t.Fatal("excluded type must not be cached")
	}
	if _, ok := r.Lookup(ctx, key); ok {
		t.Error("excluded type must be a guaranteed miss")
	}
}
