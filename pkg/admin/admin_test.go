package admin_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/publisherkit/pagecache/internal/testutil"
	"github.com/publisherkit/pagecache/pkg/admin"
	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/config"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

func newSurface(t *testing.T) (*admin.Surface, *miniredis.Miniredis) {
	t.Helper()

	mr := testutil.StartRedis(t)
	mgr := testutil.NewManager(t, mr)
	acc := cache.NewAccessor(mgr, exclusion.NewEngine(config.MapProvider{}))
	return admin.New(mgr, acc), mr
}

func TestSelfTest_RoundTrip(t *testing.T) {
	surface, mr := newSurface(t)

	res := surface.SelfTest(context.Background())
	if !res.OK {
		t.Fatalf("self-test failed: %s", res.Detail)
	}

	// The throwaway key must not linger.
	if mr.Exists("eph:__selftest__") {
		t.Error("self-test key left behind")
	}
}

func TestSelfTest_SparesHostValues(t *testing.T) {
	surface, mr := newSurface(t)

	// A host value that happens to be named "selftest" must survive the
	// diagnostic untouched.
	mr.Set("eph:selftest", "host data")

	res := surface.SelfTest(context.Background())
	if !res.OK {
		t.Fatalf("self-test failed: %s", res.Detail)
	}
	if got, err := mr.Get("eph:selftest"); err != nil || got != "host data" {
		t.Errorf("self-test clobbered host value: %q, %v", got, err)
	}
}

func TestSelfTest_BackendDown(t *testing.T) {
	surface, mr := newSurface(t)
	mr.Close()

	res := surface.SelfTest(context.Background())
	if res.OK {
		t.Fatal("expected self-test to fail with backend down")
	}
	if res.Detail == "" {
		t.Error("expected a failure detail")
	}
}

func TestPurge_All(t *testing.T) {
	surface, mr := newSurface(t)

	mr.Set("page:home", "a")
	mr.Set("object:42", "b")
	mr.Set("frag:widget:x", "c")
	mr.Set("eph:token", "d")
	mr.Set("session:abc", "host data")

	res := surface.Purge(context.Background(), "all")
	if !res.OK {
		t.Fatalf("purge failed: %s", res.Detail)
	}
	if res.Deleted != 4 {
		t.Errorf("expected 4 deleted keys, got %d", res.Deleted)
	}
	if !mr.Exists("session:abc") {
		t.Error("purge removed a key outside the cache namespaces")
	}
}

func TestPurge_SingleNamespace(t *testing.T) {
	surface, mr := newSurface(t)

	mr.Set("frag:widget:x", "a")
	mr.Set("frag:widget:y", "b")
	mr.Set("page:home", "c")

	res := surface.Purge(context.Background(), "frag")
	if !res.OK {
		t.Fatalf("purge failed: %s", res.Detail)
	}
	if res.Deleted != 2 {
		t.Errorf("expected 2 deleted keys, got %d", res.Deleted)
	}
	if !mr.Exists("page:home") {
		t.Error("purging frag must not touch page keys")
	}
}

func TestPurge_UnknownNamespace(t *testing.T) {
	surface, _ := newSurface(t)

	res := surface.Purge(context.Background(), "bogus")
	if res.OK {
		t.Fatal("expected purge of an unknown namespace to fail")
	}
	if !strings.Contains(res.Detail, "bogus") {
		t.Errorf("detail should name the rejected namespace, got %q", res.Detail)
	}
}

func TestPurge_BackendDown(t *testing.T) {
	surface, mr := newSurface(t)
	mr.Close()

	res := surface.Purge(context.Background(), "all")
	if res.OK {
		t.Fatal("expected purge to report failure with backend down")
	}
	if res.Detail == "" {
		t.Error("expected a failure detail")
	}
}

func TestStats_BackendDown(t *testing.T) {
	surface, mr := newSurface(t)
	mr.Close()

	stats, res := surface.Stats(context.Background())
	if res.OK {
		t.Fatal("expected stats to report failure with backend down")
	}
	if stats.TotalKeys != 0 {
		t.Errorf("expected zero stats on failure, got %d keys", stats.TotalKeys)
	}
}

func TestStats(t *testing.T) {
	surface, mr := newSurface(t)

	mr.Set("page:home", "body")
	mr.Set("frag:widget:x", "fragment")

	stats, res := surface.Stats(context.Background())
	if !res.OK {
		t.Fatalf("stats failed: %s", res.Detail)
	}
	if stats.TotalKeys != 2 {
		t.Errorf("expected 2 keys, got %d", stats.TotalKeys)
	}
	if stats.PerNamespace["page"] != 1 || stats.PerNamespace["frag"] != 1 {
		t.Errorf("unexpected per-namespace counts: %v", stats.PerNamespace)
	}
}

func TestStatus_Connected(t *testing.T) {
	surface, _ := newSurface(t)

	status := surface.Status(context.Background())
	if !status.Connected {
		t.Fatal("expected connected status against a live backend")
	}
}
