// Package connection manages the pooled connection to the cache backend and
// the circuit breaker that protects request latency when the backend is down.
//
// Workers handling requests are short-lived, so breaker decisions cannot rely
// on in-process memory: the breaker record is persisted through a narrow
// StateStore with its own TTL and every worker observes the same open/closed
// decision.
package connection

import (
	"time"
)

// Breaker defaults. The failure threshold and cool-down window match the
// behavior the rest of the system is tuned for: a handful of consecutive
// failures opens the circuit for about a minute.
const (
	// DefaultFailureThreshold is the number of consecutive recorded failures
	// that opens the circuit.
	DefaultFailureThreshold = 5

	// DefaultCoolDown is how long the circuit stays open before a single
	// trial request is allowed.
	DefaultCoolDown = 60 * time.Second
)

// State is the circuit breaker state.
type State string

const (
	// StateClosed allows all requests.
	StateClosed State = "closed"

	// StateOpen rejects requests without a network attempt.
	StateOpen State = "open"

	// StateHalfOpen allows a single trial request after the cool-down.
	StateHalfOpen State = "half_open"
)

// Record is the persisted circuit breaker record. It is serialized with
// msgpack and stored in a shared TTL-backed store so that concurrent
// short-lived workers agree on the breaker decision.
type Record struct {
	Failures  int       `msgpack:"failures"`
	State     State     `msgpack:"state"`
	ChangedAt time.Time `msgpack:"changed_at"`
}

// NewRecord returns a fresh closed record.
func NewRecord(now time.Time) Record {
	return Record{State: StateClosed, ChangedAt: now}
}

// Allows reports whether a request may attempt the backend at now.
// For an open record, the request is allowed only once the cool-down has
// elapsed; the caller is then expected to transition to half-open via Trial.
func (r Record) Allows(coolDown time.Duration, now time.Time) bool {
	switch r.State {
	case StateOpen:
		return now.Sub(r.ChangedAt) >= coolDown
	default:
		return true
	}
}

// Trial transitions an open record whose cool-down has elapsed into
// half-open, marking that the single trial request is in flight.
func (r *Record) Trial(now time.Time) {
	r.State = StateHalfOpen
	r.ChangedAt = now
}

// Success records a successful backend operation. Any state resets to
// closed with the failure counter cleared.
func (r *Record) Success(now time.Time) {
	r.State = StateClosed
	r.Failures = 0
	r.ChangedAt = now
}

// Failure records a failed backend operation. Returns true when the record
// transitioned into the open state: either the consecutive-failure threshold
// was reached, or the half-open trial failed.
func (r *Record) Failure(threshold int, now time.Time) bool {
	r.Failures++

	if r.State == StateHalfOpen {
		r.State = StateOpen
		r.ChangedAt = now
		return true
	}

	if r.State == StateClosed && r.Failures >= threshold {
		r.State = StateOpen
		r.ChangedAt = now
		return true
	}

	return false
}

// TripOpen forces the record open regardless of the failure counter.
// Used for fast-fail escalation after retry exhaustion under load.
func (r *Record) TripOpen(now time.Time) {
	r.State = StateOpen
	r.ChangedAt = now
}
