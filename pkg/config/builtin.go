package config

import "github.com/dope-context/dope/pkg/models"

// builtinRoles returns the default role budgets and timeouts. Budgets are
// abstract cost units per (workspace, role, rolling 24h window).
func builtinRoles() map[models.Role]RoleConfig {
	return map[models.Role]RoleConfig{
		models.RoleResearch:       {BudgetUnits: 20000, DefaultTimeoutMS: 2000},
		models.RoleImplementation: {BudgetUnits: 25000, DefaultTimeoutMS: 10000},
		models.RoleQuality:        {BudgetUnits: 15000, DefaultTimeoutMS: 30000},
		models.RoleCoordination:   {BudgetUnits: 10000, DefaultTimeoutMS: 10000},
	}
}

// builtinAttention returns the default attention thresholds and break policy.
func builtinAttention() AttentionConfig {
	return AttentionConfig{
		FastCadenceCPM:        300,
		HighSwitchRatePerHour: 6,
		MinimalSwitchRate:     1,
		HyperfocusMinutes:     45,

		BreakRecommendedMinutes: 25,
		BreakWarningMinutes:     60,
		BreakMandatoryMinutes:   90,
		BreakGraceMinutes:       5,

		SampleCacheSize: 256,
	}
}

// builtinEvents returns the default event bus sizing.
func builtinEvents() EventsConfig {
	return EventsConfig{
		SubscriberQueueSize: 64,
		ReplayBufferSize:    1000,
	}
}

// builtinSnapshots returns the default snapshot storage location.
func builtinSnapshots() SnapshotsConfig {
	return SnapshotsConfig{RootDir: "~/.dope-context/snapshots"}
}

// builtinBroker returns the default broker retry and breaker settings.
func builtinBroker() BrokerConfig {
	return BrokerConfig{
		MaxRetries:               2,
		RetryBackoffBaseMS:       100,
		BreakerFailureThreshold:  5,
		BreakerCooloffSeconds:    30,
		ScatteredMaxResultTokens: 1000,
	}
}

// builtinDocumentationPreferred returns the tool categories routed
// documentation-first with web-research fallback.
func builtinDocumentationPreferred() []string {
	return []string{"lookup", "docs", "api-reference"}
}
