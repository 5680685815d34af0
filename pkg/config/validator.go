package config

import (
	"fmt"

	"github.com/dope-context/dope/pkg/models"
)

// validate checks the resolved configuration for consistency.
func validate(cfg *Config) error {
	for role, rc := range cfg.Roles {
		if !role.IsValid() {
			return NewValidationError("roles", fmt.Sprintf("unknown role %q", role))
		}
		if rc.BudgetUnits <= 0 {
			return NewValidationError(fmt.Sprintf("roles.%s.budget_units", role), "must be positive")
		}
		if rc.DefaultTimeoutMS <= 0 {
			return NewValidationError(fmt.Sprintf("roles.%s.default_timeout_ms", role), "must be positive")
		}
	}

	for i := range cfg.Backends {
		if err := validateBackend(&cfg.Backends[i]); err != nil {
			return err
		}
	}

	a := cfg.Attention
	if !(a.BreakRecommendedMinutes < a.BreakWarningMinutes &&
		a.BreakWarningMinutes < a.BreakMandatoryMinutes) {
		return NewValidationError("attention",
			"break thresholds must be ordered recommended < warning < mandatory")
	}

	if cfg.Events.SubscriberQueueSize <= 0 {
		return NewValidationError("events.subscriber_queue_size", "must be positive")
	}
	if cfg.Events.ReplayBufferSize <= 0 {
		return NewValidationError("events.replay_buffer_size", "must be positive")
	}

	return nil
}

// validateBackend checks a single backend descriptor. Also used by the
// registry when backends register at runtime.
func validateBackend(b *models.BackendDescriptor) error {
	field := fmt.Sprintf("backends.%s", b.Name)
	if b.Name == "" {
		return NewValidationError("backends", "backend name must not be empty")
	}
	if !b.Transport.IsValid() {
		return NewValidationError(field, fmt.Sprintf("unknown transport %q", b.Transport))
	}
	switch b.Transport {
	case models.TransportTypeStdio:
		if b.Command == "" {
			return NewValidationError(field, "stdio transport requires command")
		}
	default:
		if b.Endpoint == "" {
			return NewValidationError(field, fmt.Sprintf("%s transport requires endpoint", b.Transport))
		}
	}
	if len(b.RoleTags) == 0 {
		return NewValidationError(field, "at least one role tag is required")
	}
	for _, tag := range b.RoleTags {
		if !tag.IsValid() {
			return NewValidationError(field, fmt.Sprintf("unknown role tag %q", tag))
		}
	}
	if b.Priority == "" {
		b.Priority = models.PriorityUtility
	}
	if !b.Priority.IsValid() {
		return NewValidationError(field, fmt.Sprintf("unknown priority %q", b.Priority))
	}
	return nil
}

// ValidateBackend is the exported form used for runtime registration.
func ValidateBackend(b *models.BackendDescriptor) error {
	return validateBackend(b)
}
