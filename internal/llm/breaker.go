package llm

import (
	"errors"
	"log"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half-open"
)

// CircuitBreaker stops calls to the generation backend after repeated
// failures so a dead backend costs one rejected call instead of a
// timeout per message.
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            circuitState
	failureCount     int
	consecutiveSucc  int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	if cooldown < time.Second {
		cooldown = time.Minute
	}
	return &CircuitBreaker{
		state:            stateClosed,
		failureThreshold: failureThreshold,
		successThreshold: 2,
		cooldown:         cooldown,
	}
}

// Call runs fn unless the circuit is open. The fn error feeds the
// state machine and is returned unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if time.Since(cb.lastFailureTime) > cb.cooldown {
			cb.state = stateHalfOpen
			cb.consecutiveSucc = 0
			log.Printf("[CircuitBreaker] State: OPEN -> HALF-OPEN (cooldown elapsed)")
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.consecutiveSucc = 0
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case stateClosed:
			if cb.failureCount >= cb.failureThreshold {
				cb.state = stateOpen
				log.Printf("[CircuitBreaker] State: CLOSED -> OPEN (%d consecutive failures)", cb.failureCount)
			}
		case stateHalfOpen:
			cb.state = stateOpen
			log.Printf("[CircuitBreaker] State: HALF-OPEN -> OPEN (test request failed)")
		}
		return
	}

	cb.consecutiveSucc++
	switch cb.state {
	case stateClosed:
		cb.failureCount = 0
	case stateHalfOpen:
		if cb.consecutiveSucc >= cb.successThreshold {
			cb.state = stateClosed
			cb.failureCount = 0
			log.Printf("[CircuitBreaker] State: HALF-OPEN -> CLOSED (backend recovered)")
		}
	}
}

// Open reports whether calls are currently rejected.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == stateOpen && time.Since(cb.lastFailureTime) <= cb.cooldown
}
