package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/publisherkit/pagecache/internal/testutil"
	"github.com/publisherkit/pagecache/pkg/admin"
	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/config"
	"github.com/publisherkit/pagecache/pkg/exclusion"
)

func newTestMux(t *testing.T) (*http.ServeMux, func(key, value string)) {
	t.Helper()

	mr := testutil.StartRedis(t)
	mgr := testutil.NewManager(t, mr)
	acc := cache.NewAccessor(mgr, exclusion.NewEngine(config.MapProvider{}))
	seed := func(key, value string) { mr.Set(key, value) }
	return newMux(admin.New(mgr, acc)), seed
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Connected {
		t.Error("Expected connected=true against a live backend")
	}
}

func TestSelfTestEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("GET", "/selftest", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestPurgeEndpoint(t *testing.T) {
	mux, seed := newTestMux(t)
	seed("page:home", "body")
	seed("frag:widget:x", "fragment")

	t.Run("requires_post", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/purge", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", w.Result().StatusCode)
		}
	})

	t.Run("unknown_namespace", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/purge?ns=bogus", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
		}
	})

	t.Run("purge_all", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/purge?ns=all", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}

		var payload struct {
			OK      bool  `json:"ok"`
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !payload.OK || payload.Deleted != 2 {
			t.Errorf("Expected ok with 2 deleted keys, got %+v", payload)
		}
	})
}

func TestStatsEndpoint(t *testing.T) {
	mux, seed := newTestMux(t)
	seed("page:home", "body")

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var payload struct {
		TotalKeys int64 `json:"total_keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.TotalKeys != 1 {
		t.Errorf("Expected 1 key, got %d", payload.TotalKeys)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "pagecache_breaker_state") {
		t.Error("Expected metrics output to contain pagecache_breaker_state")
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("CACHE_HOST", "redis.internal")

	v, ok := envProvider{}.Get("cache.host")
	if !ok || v != "redis.internal" {
		t.Errorf("Get(cache.host) = %q, %v; want redis.internal, true", v, ok)
	}

	if _, ok := (envProvider{}).Get("cache.password"); ok {
		t.Error("unset key should report absent")
	}
}
