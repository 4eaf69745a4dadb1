package infra

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // failing, reject calls
	BreakerHalfOpen                     // probing recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker isolates a flaky upstream (the exchange REST API) so repeated
// transport failures stop burning request weight. Safe for concurrent use.
type Breaker struct {
	name string
	mu   sync.Mutex

	state       BreakerState
	failures    int
	probeOKs    int
	lastFailure time.Time

	failureThreshold int
	probeThreshold   int
	cooldown         time.Duration
}

// NewBreaker creates a closed breaker. Thresholds follow the exchange-client
// defaults: open after 5 straight failures, close after 2 good probes,
// re-probe after 30s.
func NewBreaker(name string) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: 5,
		probeThreshold:   2,
		cooldown:         30 * time.Second,
	}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.lastFailure) > b.cooldown {
			b.state = BreakerHalfOpen
			b.probeOKs = 0
			slog.Info("circuit breaker half-open", slog.String("name", b.name))
			return true
		}
		return false
	case BreakerHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess feeds back a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.probeOKs++
		if b.probeOKs >= b.probeThreshold {
			b.state = BreakerClosed
			b.failures = 0
			slog.Info("circuit breaker closed", slog.String("name", b.name))
		}
	}
}

// RecordFailure feeds back a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = BreakerOpen
			slog.Warn("circuit breaker open",
				slog.String("name", b.name), slog.Int("failures", b.failures))
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		slog.Warn("circuit breaker re-opened", slog.String("name", b.name))
	}
}

// State returns the current state for monitoring.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
