// Package testutil provides shared test helpers for the cache layer.
package testutil

import (
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/publisherkit/pagecache/pkg/connection"
)

// StartRedis starts an in-memory Redis server for unit tests. The server is
// shut down automatically when the test finishes.
func StartRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// SettingsFor returns connection settings pointing at the given test server.
func SettingsFor(t *testing.T, mr *miniredis.Miniredis) connection.Settings {
	t.Helper()

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	return connection.Settings{
		Host:    mr.Host(),
		Port:    port,
		Timeout: time.Second,
	}
}

// NewManager creates a connection manager against the test server with fast
// retry timing so failure-path tests stay quick.
func NewManager(t *testing.T, mr *miniredis.Miniredis) *connection.Manager {
	t.Helper()

	cfg := connection.DefaultConfig(SettingsFor(t, mr))
	cfg.InitialBackoff = time.Millisecond
	cfg.LoadSampler = func() bool { return false }

	mgr, err := connection.New(cfg)
	if err != nil {
		t.Fatalf("create connection manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	return mgr
}
