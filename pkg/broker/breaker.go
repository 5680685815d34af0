package broker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dope-context/dope/pkg/registry"
)

// breakerSet manages one circuit breaker per backend. Failures on one
// backend never affect another's circuit; state transitions are serialized
// inside gobreaker, and half-open admits a single probe request.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	failureThreshold uint32
	cooloff          time.Duration
	registry         *registry.Registry
}

func newBreakerSet(failureThreshold int, cooloff time.Duration, reg *registry.Registry) *breakerSet {
	return &breakerSet{
		breakers:         make(map[string]*gobreaker.CircuitBreaker),
		failureThreshold: uint32(failureThreshold),
		cooloff:          cooloff,
		registry:         reg,
	}
}

// forBackend returns the breaker for a backend, creating it on first use.
func (s *breakerSet) forBackend(name string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		// Half-open admits exactly one probe request.
		MaxRequests: 1,
		Timeout:     s.cooloff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.failureThreshold
		},
		OnStateChange: func(backend string, _, to gobreaker.State) {
			// Keep the registry's health view aligned with the circuit so
			// resolution skips open backends without consulting the breaker.
			if to == gobreaker.StateOpen {
				s.registry.MarkDown(backend)
			}
		},
	})
	s.breakers[name] = cb
	return cb
}

// state returns the circuit state for a backend, or closed if none exists yet.
func (s *breakerSet) state(name string) gobreaker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[name]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
