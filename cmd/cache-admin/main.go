// cache-admin serves the operator surface of the cache layer over HTTP:
// connection status, self-test, purges, statistics and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/publisherkit/pagecache/pkg/admin"
	"github.com/publisherkit/pagecache/pkg/cache"
	"github.com/publisherkit/pagecache/pkg/connection"
	"github.com/publisherkit/pagecache/pkg/exclusion"
	"github.com/publisherkit/pagecache/pkg/logging"
)

func main() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})

	provider := envProvider{}
	settings := connection.SettingsFromProvider(provider)

	mgr, err := connection.New(connection.DefaultConfig(settings))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid connection configuration")
	}
	defer mgr.Close()

	excl := exclusion.NewEngine(provider)
	surface := admin.New(mgr, cache.NewAccessor(mgr, excl))

	// A down backend is an operating condition, not a startup error: the
	// admin surface exists precisely to diagnose it.
	if st := surface.Status(context.Background()); !st.Connected {
		log.Warn().Str("addr", settings.Addr()).Msg("Backend not reachable at startup")
	} else {
		log.Info().Str("addr", settings.Addr()).Msg("Connected to cache backend")
	}

	addr := ":" + getEnv("PORT", "8080")
	log.Info().Str("addr", addr).Msg("Starting cache admin server")

	if err := http.ListenAndServe(addr, newMux(surface)); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// newMux wires the admin surface to HTTP routes.
func newMux(surface *admin.Surface) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/status", statusHandler(surface))
	mux.HandleFunc("/selftest", selfTestHandler(surface))
	mux.HandleFunc("/purge", purgeHandler(surface))
	mux.HandleFunc("/stats", statsHandler(surface))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func statusHandler(surface *admin.Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := surface.Status(r.Context())
		code := http.StatusOK
		if !st.Connected {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"connected":  st.Connected,
			"latency_ms": st.Latency.Milliseconds(),
			"server":     st.Server,
		})
	}
}

func selfTestHandler(surface *admin.Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := surface.SelfTest(r.Context())
		code := http.StatusOK
		if !res.OK {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"ok": res.OK, "detail": res.Detail})
	}
}

func purgeHandler(surface *admin.Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "purge requires POST", http.StatusMethodNotAllowed)
			return
		}
		res := surface.Purge(r.Context(), r.URL.Query().Get("ns"))
		code := http.StatusOK
		if !res.OK {
			code = http.StatusBadGateway
			if strings.HasPrefix(res.Detail, "unknown namespace") {
				code = http.StatusBadRequest
			}
		}
		writeJSON(w, code, map[string]any{"ok": res.OK, "detail": res.Detail, "deleted": res.Deleted})
	}
}

func statsHandler(surface *admin.Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, res := surface.Stats(r.Context())
		if !res.OK {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "detail": res.Detail})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":               true,
			"total_keys":       stats.TotalKeys,
			"per_namespace":    stats.PerNamespace,
			"memory_bytes":     stats.MemoryBytes,
			"memory_estimated": stats.MemoryEstimated,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// envProvider reads configuration keys from the environment, mapping
// "cache.host" to CACHE_HOST and so on.
type envProvider struct{}

func (envProvider) Get(key string) (string, bool) {
	return os.LookupEnv(strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
