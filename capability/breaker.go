package capability

import (
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

// Circuit breaker states for managing upstream failure patterns.
const (
	Closed   State = iota // Normal operation
	Open                  // Failing, reject calls
	HalfOpen              // Testing if the upstream recovered
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines thresholds for circuit breaker behavior.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"` // consecutive failures before opening
	ResetTimeout     time.Duration `json:"reset_timeout" yaml:"reset_timeout"`         // time to wait before the half-open probe
}

// DefaultBreakerConfig provides reasonable defaults for breaker behavior.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	ResetTimeout:     30 * time.Second,
}

// Breaker is a three-state circuit breaker guarding one external capability.
// Transitions are the sole mutator of breaker state:
//
//	Closed --(threshold consecutive failures)--> Open
//	Open --(reset timeout elapsed, next Allow)--> HalfOpen (one probe)
//	HalfOpen --(probe success)--> Closed / --(probe failure)--> Open
//
// Only one trial call is allowed per HalfOpen window; concurrent callers
// during the probe are rejected and take the fallback path.
type Breaker struct {
	config BreakerConfig

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	probeInFlight   bool
}

// NewBreaker creates a circuit breaker in the Closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultBreakerConfig.ResetTimeout
	}
	return &Breaker{config: config, state: Closed}
}

// Allow reports whether a live call may proceed. When the reset timeout has
// elapsed in the Open state the breaker moves to HalfOpen and admits exactly
// one probe; every other caller is rejected until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureTime) >= b.config.ResetTimeout {
			b.state = HalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// Record reports the outcome of an admitted call and drives state transitions.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive-failure counter.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Reset manually returns the breaker to the Closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.probeInFlight = false
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.state = Closed
		b.failureCount = 0
		b.probeInFlight = false
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		// The probe failed; reopen and restart the reset clock.
		b.state = Open
		b.probeInFlight = false
	}
}
