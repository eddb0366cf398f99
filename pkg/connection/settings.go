package connection

import (
	"net"
	"strconv"
	"time"

	"github.com/publisherkit/pagecache/pkg/config"
)

// Connection defaults.
const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 6379
	DefaultTimeout = time.Second
)

// Settings holds the backend connection parameters. Immutable once the
// Manager is constructed; supplied by the host's configuration collaborator.
type Settings struct {
	// Host is the backend address (hostname, IP or unix socket path).
	Host string

	// Port is the backend TCP port. Ignored for unix sockets.
	Port int

	// Password is the optional AUTH credential.
	Password string

	// TLS enables transport encryption. Certificate validation uses the
	// host's trust store.
	TLS bool

	// Timeout is the base per-operation timeout.
	Timeout time.Duration

	// PoolID names the shared connection pool so repeated acquisitions
	// within a process reuse the same underlying sockets.
	PoolID string

	// Database selects the backend logical database.
	Database int
}

// SettingsFromProvider reads connection settings from the host configuration.
func SettingsFromProvider(p config.Provider) Settings {
	return Settings{
		Host:     config.String(p, config.KeyHost, DefaultHost),
		Port:     config.Int(p, config.KeyPort, DefaultPort),
		Password: config.String(p, config.KeyPassword, ""),
		TLS:      config.Bool(p, config.KeyTLS, false),
		Timeout:  config.Duration(p, config.KeyTimeout, DefaultTimeout),
		PoolID:   config.String(p, config.KeyPoolID, ""),
		Database: config.Int(p, config.KeyDatabase, 0),
	}
}

// Addr returns the dialable address.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Local reports whether the backend address is loopback or on a private
// network. Local backends are trusted: callers connecting to them always
// bypass the breaker so operators can test and repair connectivity.
func (s Settings) Local() bool {
	if s.Host == "localhost" {
		return true
	}
	ip := net.ParseIP(s.Host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
