// Package config loads and validates the dope.yaml configuration:
// backend descriptors, role budgets, attention thresholds, and event bus
// sizing. Built-in defaults are merged with user configuration.
package config

import (
	"sync"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// DopeYAMLConfig represents the complete dope.yaml file structure.
type DopeYAMLConfig struct {
	Backends               map[string]models.BackendDescriptor `yaml:"backends"`
	Roles                  map[models.Role]RoleConfig          `yaml:"roles"`
	Attention              *AttentionConfig                    `yaml:"attention"`
	Events                 *EventsConfig                       `yaml:"events"`
	Snapshots              *SnapshotsConfig                    `yaml:"snapshots"`
	DocumentationPreferred []string                            `yaml:"documentation_preferred"`
	Broker                 *BrokerConfig                       `yaml:"broker"`
}

// RoleConfig holds per-role budget and timeout settings.
type RoleConfig struct {
	// BudgetUnits is the rolling 24h cost budget for this role per workspace.
	BudgetUnits int `yaml:"budget_units"`
	// DefaultTimeoutMS is the per-call deadline when the caller supplies none.
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`
}

// DefaultTimeout returns the role's default deadline as a duration.
func (r RoleConfig) DefaultTimeout() time.Duration {
	return time.Duration(r.DefaultTimeoutMS) * time.Millisecond
}

// AttentionConfig holds the tunable classification thresholds and break
// policy minutes. The qualitative rules are fixed; only thresholds move.
type AttentionConfig struct {
	FastCadenceCPM        float64 `yaml:"fast_cadence_cpm"`
	HighSwitchRatePerHour float64 `yaml:"high_switch_rate_per_hour"`
	MinimalSwitchRate     float64 `yaml:"minimal_switch_rate_per_hour"`
	HyperfocusMinutes     float64 `yaml:"hyperfocus_minutes"`

	BreakRecommendedMinutes float64 `yaml:"break_recommended_minutes"`
	BreakWarningMinutes     float64 `yaml:"break_warning_minutes"`
	BreakMandatoryMinutes   float64 `yaml:"break_mandatory_minutes"`
	BreakGraceMinutes       float64 `yaml:"break_grace_minutes"`

	// SampleCacheSize bounds the in-memory per-user sample history.
	SampleCacheSize int `yaml:"sample_cache_size"`
}

// EventsConfig holds event bus sizing.
type EventsConfig struct {
	// SubscriberQueueSize bounds each subscriber's delivery queue.
	SubscriberQueueSize int `yaml:"subscriber_queue_size"`
	// ReplayBufferSize bounds the degraded-mode replay buffer.
	ReplayBufferSize int `yaml:"replay_buffer_size"`
}

// SnapshotsConfig holds sync/index coordinator settings.
type SnapshotsConfig struct {
	// RootDir is where workspace snapshots are stored. "~" expands to the
	// user home directory. Default: ~/.dope-context/snapshots
	RootDir string `yaml:"root_dir"`
}

// BrokerConfig holds broker retry and circuit breaker settings.
type BrokerConfig struct {
	// MaxRetries is the number of same-backend retries before failover.
	MaxRetries int `yaml:"max_retries"`
	// RetryBackoffBaseMS is the exponential backoff base (jittered ±50%).
	RetryBackoffBaseMS int `yaml:"retry_backoff_base_ms"`
	// BreakerFailureThreshold is the consecutive-failure count that opens
	// a backend's circuit.
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`
	// BreakerCooloffSeconds is the open-circuit cool-off window.
	BreakerCooloffSeconds int `yaml:"breaker_cooloff_seconds"`
	// ScatteredMaxResultTokens caps result size in the scattered state.
	ScatteredMaxResultTokens int `yaml:"scattered_max_result_tokens"`
}

// Config is the validated, ready-to-use configuration.
type Config struct {
	Backends               []models.BackendDescriptor
	Roles                  map[models.Role]RoleConfig
	Attention              AttentionConfig
	Events                 EventsConfig
	Snapshots              SnapshotsConfig
	Broker                 BrokerConfig
	DocumentationPreferred map[string]bool // tool category → docs-first routing
}

// RoleFor returns the role config, falling back to built-in defaults for
// unknown roles (validation rejects unknown roles at load time; this guard
// covers programmatic construction in tests).
func (c *Config) RoleFor(role models.Role) RoleConfig {
	if rc, ok := c.Roles[role]; ok {
		return rc
	}
	return builtinRoles()[models.RoleCoordination]
}

// Stats summarizes loaded configuration for startup logging.
type Stats struct {
	Backends int
	Roles    int
}

// Stats returns configuration counts.
func (c *Config) Stats() Stats {
	return Stats{Backends: len(c.Backends), Roles: len(c.Roles)}
}

// BackendRegistryConfig stores backend descriptors with thread-safe access.
// The live health view is owned by pkg/registry; this is the configured set.
type BackendRegistryConfig struct {
	backends map[string]*models.BackendDescriptor
	mu       sync.RWMutex
}

// NewBackendRegistryConfig builds a registry config from descriptors.
func NewBackendRegistryConfig(backends []models.BackendDescriptor) *BackendRegistryConfig {
	m := make(map[string]*models.BackendDescriptor, len(backends))
	for i := range backends {
		b := backends[i]
		m[b.Name] = &b
	}
	return &BackendRegistryConfig{backends: m}
}

// Get retrieves a backend descriptor by name.
func (r *BackendRegistryConfig) Get(name string) (*models.BackendDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Names returns all configured backend names.
func (r *BackendRegistryConfig) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	return names
}
