package broker

import (
	"sync"

	"github.com/dope-context/dope/pkg/models"
)

// Stats is a point-in-time snapshot of invocation counters.
type Stats struct {
	Invocations int64                      `json:"invocations"`
	Successes   int64                      `json:"successes"`
	Failures    map[models.ErrorKind]int64 `json:"failures"`
	ByBackend   map[string]int64           `json:"by_backend"`
	CostUnits   int64                      `json:"cost_units"`
}

type statsCollector struct {
	mu          sync.Mutex
	invocations int64
	successes   int64
	failures    map[models.ErrorKind]int64
	byBackend   map[string]int64
	costUnits   int64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		failures:  make(map[models.ErrorKind]int64),
		byBackend: make(map[string]int64),
	}
}

func (s *statsCollector) RecordSuccess(backend string, cost int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations++
	s.successes++
	s.byBackend[backend]++
	s.costUnits += int64(cost)
}

func (s *statsCollector) RecordFailure(backend string, kind models.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations++
	s.failures[kind]++
	if backend != "" {
		s.byBackend[backend]++
	}
}

func (s *statsCollector) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{
		Invocations: s.invocations,
		Successes:   s.successes,
		Failures:    make(map[models.ErrorKind]int64, len(s.failures)),
		ByBackend:   make(map[string]int64, len(s.byBackend)),
		CostUnits:   s.costUnits,
	}
	for k, v := range s.failures {
		out.Failures[k] = v
	}
	for k, v := range s.byBackend {
		out.ByBackend[k] = v
	}
	return out
}
