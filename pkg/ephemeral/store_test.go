package ephemeral_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/publisherkit/pagecache/internal/testutil"
	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/config"
	"github.com/publisherkit/pagecache/pkg/ephemeral"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

func newRedirector(t *testing.T, settings config.MapProvider) (*ephemeral.Redirector, *miniredis.Miniredis, *ephemeral.MemoryFallback) {
	t.Helper()

	mr := testutil.StartRedis(t)
	mgr := testutil.NewManager(t, mr)
	excl := exclusion.NewEngine(settings)
	fallback := ephemeral.NewMemoryFallback()
	return ephemeral.NewRedirector(cache.NewAccessor(mgr, excl), excl, fallback), mr, fallback
}

func TestRedirector_RedirectsToBackend(t *testing.T) {
	r, mr, fallback := newRedirector(t, config.MapProvider{})
	ctx := context.Background()

	if !r.Set(ctx, "api_token", []byte("secret"), time.Minute) {
		t.Fatal("set failed")
	}

	if !mr.Exists("eph:api_token") {
		t.Error("value not redirected into the ephemeral namespace")
	}
	if _, ok, _ := fallback.Get(ctx, "api_token"); ok {
		t.Error("redirected value must not also land in the fallback store")
	}

	got, ok := r.Get(ctx, "api_token")
	if !ok || !bytes.Equal(got, []byte("secret")) {
		t.Errorf("get = %q, %v; want secret, true", got, ok)
	}
}

func TestRedirector_ExcludedNameDefersToFallback(t *testing.T) {
	r, mr, fallback := newRedirector(t, config.MapProvider{
		config.KeyExcludeEphemeral: "update_lock_*",
	})
	ctx := context.Background()

	if !r.Set(ctx, "update_lock_core", []byte("1"), time.Minute) {
		t.Fatal("set failed")
	}

	if mr.Exists("eph:update_lock_core") {
		t.Error("excluded name must not reach the backend")
	}
	if _, ok, _ := fallback.Get(ctx, "update_lock_core"); !ok {
		t.Error("excluded name missing from the fallback store")
	}

	got, ok := r.Get(ctx, "update_lock_core")
	if !ok || string(got) != "1" {
		t.Errorf("get = %q, %v; want 1, true", got, ok)
	}
}

func TestRedirector_BackendDownFallsBack(t *testing.T) {
	r, mr, fallback := newRedirector(t, config.MapProvider{})
	ctx := context.Background()
	mr.Close()

	if !r.Set(ctx, "api_token", []byte("secret"), time.Minute) {
		t.Fatal("set should succeed via the fallback store")
	}
	if _, ok, _ := fallback.Get(ctx, "api_token"); !ok {
		t.Fatal("value missing from the fallback store")
	}

	got, ok := r.Get(ctx, "api_token")
	if !ok || string(got) != "secret" {
		t.Errorf("get = %q, %v; want secret, true", got, ok)
	}
}

func TestRedirector_DeleteRemovesBothStores(t *testing.T) {
	r, mr, fallback := newRedirector(t, config.MapProvider{})
	ctx := context.Background()

	r.Set(ctx, "api_token", []byte("secret"), time.Minute)
	fallback.Set(ctx, "api_token", []byte("stale"), 0)

	if !r.Delete(ctx, "api_token") {
		t.Fatal("delete reported nothing removed")
	}
	if mr.Exists("eph:api_token") {
		t.Error("backend copy survived delete")
	}
	if _, ok, _ := fallback.Get(ctx, "api_token"); ok {
		t.Error("fallback copy survived delete")
	}
}

func TestMemoryFallback_Expiry(t *testing.T) {
	m := ephemeral.NewMemoryFallback()
	ctx := context.Background()

	m.Set(ctx, "short", []byte("v"), time.Millisecond)
	m.Set(ctx, "forever", []byte("v"), 0)

	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Error("expired entry still readable")
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Error("zero-ttl entry should not expire")
	}
}
