package judge

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker rejects a call.
var ErrBreakerOpen = errors.New("semantic judge circuit open")

// breakerState is the current mode of the circuit breaker.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker around judge calls.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	SuccessThreshold int           // successes in half-open before closing (default 2)
	Cooldown         time.Duration // open duration before probing again (default 30s)
}

// breaker guards the judge's upstream API. After FailureThreshold consecutive
// failures it rejects calls for Cooldown, then lets probes through until
// SuccessThreshold successes close it again.
type breaker struct {
	mu sync.Mutex

	state       breakerState
	failures    int
	successes   int
	lastFailure time.Time
	cfg         BreakerConfig
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &breaker{state: stateClosed, cfg: cfg}
}

// allow reports whether a call may proceed, transitioning open to half-open
// once the cooldown has elapsed.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.lastFailure) > b.cfg.Cooldown {
			b.state = stateHalfOpen
			b.successes = 0
			return nil
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = stateClosed
			b.failures = 0
			b.successes = 0
		}
	case stateClosed:
		b.failures = 0
	}
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case stateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = stateOpen
		}
	case stateHalfOpen:
		b.state = stateOpen
		b.successes = 0
	}
}

func (b *breaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
