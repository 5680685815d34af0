// Package registry tracks the set of backend servers: what they can do and
// whether they are healthy. The probe scheduler is the single writer of
// health state; resolution in the broker reads concurrently.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/models"
)

// Filter narrows List results.
type Filter struct {
	RoleTag  models.RoleTag
	Priority models.BackendPriority

	// RoutableOnly limits results to backends whose health admits traffic
	// (up or degraded).
	RoutableOnly bool
}

// Registry is the in-memory backend table.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*entry

	// failureThreshold is the consecutive-failure count that marks a
	// backend down.
	failureThreshold int
}

type entry struct {
	descriptor          models.BackendDescriptor
	health              models.HealthState
	consecutiveFailures int
	lastLatencyMS       int64
	lastProbe           time.Time
	lastError           string
}

// New creates an empty registry. failureThreshold ≤ 0 selects the default (5).
func New(failureThreshold int) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	return &Registry{
		backends:         make(map[string]*entry),
		failureThreshold: failureThreshold,
	}
}

// Register inserts or replaces a backend descriptor. A replaced backend's
// health resets to unknown: the new descriptor may point elsewhere.
func (r *Registry) Register(descriptor models.BackendDescriptor) error {
	if err := config.ValidateBackend(&descriptor); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[descriptor.Name] = &entry{
		descriptor: descriptor,
		health:     models.HealthUnknown,
	}
	return nil
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
}

// Get returns the live status of one backend.
func (r *Registry) Get(name string) (*models.BackendStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend %q not registered", name)
	}
	status := e.status()
	return &status, nil
}

// List returns backend statuses matching the filter, sorted by name for
// deterministic iteration.
func (r *Registry) List(filter Filter) []models.BackendStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.BackendStatus
	for _, e := range r.backends {
		if filter.RoleTag != "" && !e.descriptor.HasRoleTag(filter.RoleTag) {
			continue
		}
		if filter.Priority != "" && e.descriptor.Priority != filter.Priority {
			continue
		}
		if filter.RoutableOnly && !e.health.Routable() {
			continue
		}
		result = append(result, e.status())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Descriptor.Name < result[j].Descriptor.Name
	})
	return result
}

// Names returns all registered backend names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ReportSuccess records an observed successful request or probe.
// State machine: unknown/degraded/down → up after one success.
func (r *Registry) ReportSuccess(name string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.backends[name]
	if !ok {
		return
	}
	e.health = models.HealthUp
	e.consecutiveFailures = 0
	e.lastLatencyMS = latency.Milliseconds()
	e.lastProbe = time.Now()
	e.lastError = ""
}

// ReportFailure records an observed failed request or probe.
// A failure while up degrades; reaching the threshold marks down.
func (r *Registry) ReportFailure(name string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.backends[name]
	if !ok {
		return
	}
	e.consecutiveFailures++
	e.lastProbe = time.Now()
	e.lastError = errMsg
	switch {
	case e.consecutiveFailures >= r.failureThreshold:
		e.health = models.HealthDown
	case e.health == models.HealthUp || e.health == models.HealthDegraded:
		e.health = models.HealthDegraded
	default:
		// unknown stays unknown until the first success; down stays down
		// until the breaker's half-open probe succeeds.
	}
}

// MarkDown forces a backend down. Used by the broker when a circuit opens.
func (r *Registry) MarkDown(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.backends[name]; ok {
		e.health = models.HealthDown
	}
}

func (e *entry) status() models.BackendStatus {
	return models.BackendStatus{
		Descriptor:          e.descriptor,
		Health:              e.health,
		ConsecutiveFailures: e.consecutiveFailures,
		LastLatencyMS:       e.lastLatencyMS,
		LastProbe:           e.lastProbe,
		LastError:           e.lastError,
	}
}
