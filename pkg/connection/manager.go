package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for connection management.
var (
	breakerOpensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecache_breaker_opens_total",
		Help: "Total number of times the circuit breaker opened",
	})

	breakerShortCircuitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecache_breaker_short_circuits_total",
		Help: "Total number of requests rejected by an open breaker without a network attempt",
	})

	breakerStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagecache_breaker_state",
		Help: "Current breaker state (0=closed, 1=half_open, 2=open)",
	})

	connectionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecache_connection_failures_total",
		Help: "Total number of backend connection or command failures",
	})

	connectionLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagecache_connection_latency_seconds",
		Help:    "Backend liveness probe round-trip time in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)

// Execute retry defaults. Backoff doubles between attempts.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 20 * time.Millisecond
)

// Config holds the Manager configuration.
type Config struct {
	// Settings are the immutable backend connection parameters.
	Settings Settings

	// Store persists the breaker record. Defaults to an in-process
	// MemoryStore when nil.
	Store StateStore

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Defaults to DefaultFailureThreshold.
	FailureThreshold int

	// CoolDown is how long the circuit stays open. Defaults to DefaultCoolDown.
	CoolDown time.Duration

	// MaxAttempts is the number of attempts Execute makes. Defaults to
	// DefaultMaxAttempts.
	MaxAttempts int

	// InitialBackoff is the delay before the second Execute attempt; it
	// doubles for each further attempt. Defaults to DefaultInitialBackoff.
	InitialBackoff time.Duration

	// LoadSampler reports host load for fast-fail escalation. Defaults to
	// DefaultLoadSampler.
	LoadSampler LoadSampler
}

// DefaultConfig returns a Config for the given settings with all defaults.
func DefaultConfig(settings Settings) Config {
	return Config{
		Settings:         settings,
		Store:            NewMemoryStore(),
		FailureThreshold: DefaultFailureThreshold,
		CoolDown:         DefaultCoolDown,
		MaxAttempts:      DefaultMaxAttempts,
		InitialBackoff:   DefaultInitialBackoff,
		LoadSampler:      DefaultLoadSampler,
	}
}

// Manager owns the pooled backend connection and the circuit breaker that
// guards it. All backend errors are absorbed here: callers get a nil handle
// or a false result, never a transport error.
type Manager struct {
	cfg     Config
	store   StateStore
	sampler LoadSampler
	logger  zerolog.Logger

	mu     sync.Mutex
	client *redis.Client
}

// New creates a connection Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Settings.Host == "" {
		return nil, fmt.Errorf("backend host is required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultCoolDown
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Settings.Timeout <= 0 {
		cfg.Settings.Timeout = DefaultTimeout
	}
	if cfg.LoadSampler == nil {
		cfg.LoadSampler = DefaultLoadSampler
	}

	return &Manager{
		cfg:     cfg,
		store:   cfg.Store,
		sampler: cfg.LoadSampler,
		logger:  log.With().Str("component", "connection").Logger(),
	}, nil
}

// Local reports whether the backend address is loopback or private.
// Callers talking to a local backend set bypass=true per the bypass policy.
func (m *Manager) Local() bool {
	return m.cfg.Settings.Local()
}

// Acquire returns a live backend handle, or nil when the backend is
// unavailable or the breaker is open. With bypass=true the breaker state is
// ignored and the backend is always attempted. forceReconnect discards the
// pooled client and performs a fresh handshake.
func (m *Manager) Acquire(ctx context.Context, forceReconnect, bypass bool) *redis.Client {
	if !bypass && !m.allowOrTrial(ctx) {
		breakerShortCircuitsTotal.Inc()
		return nil
	}

	client := m.pooledClient(forceReconnect)

	// Liveness probe. Dial, TLS negotiation and AUTH all happen lazily on
	// the first command, so a failure anywhere in that chain surfaces here.
	pctx, cancel := context.WithTimeout(ctx, m.cfg.Settings.Timeout)
	defer cancel()

	start := time.Now()
	if err := client.Ping(pctx).Err(); err != nil {
		m.logger.Warn().Err(err).Str("addr", m.cfg.Settings.Addr()).Msg("Backend liveness probe failed")
		m.recordFailure(ctx)
		return nil
	}
	connectionLatencySeconds.Observe(time.Since(start).Seconds())

	m.recordSuccess(ctx)
	return client
}

// Execute runs fn against the backend with up to MaxAttempts attempts and
// exponential backoff between them. Each attempt carries a hard timeout.
// Returns false when all attempts fail; the error itself is absorbed.
// After exhaustion without bypass, the breaker is forced open when the host
// is under high load, rather than waiting for the full failure threshold.
func (m *Manager) Execute(ctx context.Context, fn func(ctx context.Context, client *redis.Client) error, bypass bool) bool {
	backoff := m.cfg.InitialBackoff

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		client := m.Acquire(ctx, attempt > 1, bypass)
		if client == nil {
			// Open breaker means no amount of retrying helps.
			if !bypass && !m.allowed(ctx) {
				return false
			}
		} else {
			octx, cancel := context.WithTimeout(ctx, m.cfg.Settings.Timeout)
			err := fn(octx, client)
			cancel()
			if err == nil {
				return true
			}
			m.logger.Debug().Err(err).Int("attempt", attempt).Msg("Backend command failed")
			m.recordFailure(ctx)
		}

		if attempt < m.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	if !bypass && m.sampler() {
		m.logger.Error().Msg("Retry attempts exhausted under high load - forcing breaker open")
		m.tripOpen(ctx)
	}
	return false
}

// Status describes the backend connection for diagnostic callers.
type Status struct {
	Connected bool
	Latency   time.Duration
	Server    map[string]string
}

// Status probes the backend and returns connection details. Diagnostic
// operations always bypass the breaker.
func (m *Manager) Status(ctx context.Context) Status {
	client := m.Acquire(ctx, false, true)
	if client == nil {
		return Status{}
	}

	pctx, cancel := context.WithTimeout(ctx, m.cfg.Settings.Timeout)
	defer cancel()

	start := time.Now()
	if err := client.Ping(pctx).Err(); err != nil {
		return Status{}
	}
	latency := time.Since(start)

	st := Status{Connected: true, Latency: latency}

	// Server metadata is best-effort: restricted deployments may deny INFO.
	if info, err := client.Info(pctx, "server").Result(); err == nil {
		st.Server = parseInfo(info)
	}
	return st
}

// Close releases the pooled client.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

// pooledClient returns the shared client, creating or recreating it as needed.
func (m *Manager) pooledClient(forceReconnect bool) *redis.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && !forceReconnect {
		return m.client
	}
	if m.client != nil {
		_ = m.client.Close()
	}

	s := m.cfg.Settings
	opts := &redis.Options{
		Addr:         s.Addr(),
		Password:     s.Password,
		DB:           s.Database,
		DialTimeout:  s.Timeout,
		ReadTimeout:  s.Timeout,
		WriteTimeout: s.Timeout,
	}
	if s.PoolID != "" {
		opts.ClientName = s.PoolID
	}
	if s.TLS {
		// Certificate validation is delegated to the host's trust store.
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	m.client = redis.NewClient(opts)
	return m.client
}

// allowOrTrial checks the shared breaker record. An open record past its
// cool-down transitions to half-open and admits exactly this caller as the
// trial request; a half-open record rejects everyone else until the trial
// resolves.
func (m *Manager) allowOrTrial(ctx context.Context) bool {
	rec, ok, err := m.store.Load(ctx)
	if err != nil || !ok {
		return true
	}

	now := time.Now()
	switch rec.State {
	case StateOpen:
		if !rec.Allows(m.cfg.CoolDown, now) {
			return false
		}
		rec.Trial(now)
		m.saveRecord(ctx, rec)
		m.logger.Info().Msg("Breaker cool-down elapsed - allowing trial request")
		return true
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// allowed reports the breaker decision without transitioning state.
func (m *Manager) allowed(ctx context.Context) bool {
	rec, ok, err := m.store.Load(ctx)
	if err != nil || !ok {
		return true
	}
	if rec.State == StateHalfOpen {
		return false
	}
	return rec.Allows(m.cfg.CoolDown, time.Now())
}

func (m *Manager) recordFailure(ctx context.Context) {
	connectionFailuresTotal.Inc()

	rec, ok, err := m.store.Load(ctx)
	if err != nil || !ok {
		rec = NewRecord(time.Now())
	}

	if rec.Failure(m.cfg.FailureThreshold, time.Now()) {
		breakerOpensTotal.Inc()
		m.logger.Error().
			Int("failures", rec.Failures).
			Str("addr", m.cfg.Settings.Addr()).
			Msg("Circuit breaker opened - backend considered down")
	}
	m.saveRecord(ctx, rec)
}

func (m *Manager) recordSuccess(ctx context.Context) {
	rec, ok, err := m.store.Load(ctx)
	if err != nil || !ok {
		return
	}
	if rec.State == StateClosed && rec.Failures == 0 {
		return
	}

	wasTrial := rec.State == StateHalfOpen
	rec.Success(time.Now())
	m.saveRecord(ctx, rec)

	if wasTrial {
		m.logger.Info().Msg("Breaker trial succeeded - circuit closed")
	}
}

func (m *Manager) tripOpen(ctx context.Context) {
	rec, ok, err := m.store.Load(ctx)
	if err != nil || !ok {
		rec = NewRecord(time.Now())
	}
	if rec.State != StateOpen {
		breakerOpensTotal.Inc()
	}
	rec.TripOpen(time.Now())
	m.saveRecord(ctx, rec)
}

// saveRecord persists the record with a TTL of twice the cool-down, so a
// stuck-open record expires on its own.
func (m *Manager) saveRecord(ctx context.Context, rec Record) {
	if err := m.store.Save(ctx, rec, 2*m.cfg.CoolDown); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to persist breaker state")
	}
	breakerStateGauge.Set(stateGaugeValue(rec.State))
}

func stateGaugeValue(s State) float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// parseInfo extracts key:value pairs from an INFO section response.
func parseInfo(info string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, found := strings.Cut(line, ":"); found {
			out[k] = v
		}
	}
	return out
}
