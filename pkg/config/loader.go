package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read dope.yaml from configDir (absent file → built-ins only)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user configuration over built-in defaults
//  5. Validate everything
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	raw, err := loadDopeYAML(configDir)
	if err != nil {
		return nil, NewLoadError("dope.yaml", err)
	}

	cfg, err := resolve(raw)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"backends", stats.Backends,
		"roles", stats.Roles)
	return cfg, nil
}

// loadDopeYAML reads and parses dope.yaml. A missing file is not an error:
// the server can run on built-in defaults with backends registered at runtime.
func loadDopeYAML(configDir string) (*DopeYAMLConfig, error) {
	path := filepath.Join(configDir, "dope.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("No dope.yaml found, using built-in defaults", "path", path)
		return &DopeYAMLConfig{}, nil
	}
	if err != nil {
		return nil, err
	}

	data = ExpandEnv(data)

	var raw DopeYAMLConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &raw, nil
}

// resolve merges user configuration over built-in defaults.
func resolve(raw *DopeYAMLConfig) (*Config, error) {
	roles := builtinRoles()
	for role, rc := range raw.Roles {
		base := roles[role]
		if rc.BudgetUnits == 0 {
			rc.BudgetUnits = base.BudgetUnits
		}
		if rc.DefaultTimeoutMS == 0 {
			rc.DefaultTimeoutMS = base.DefaultTimeoutMS
		}
		roles[role] = rc
	}

	attention := builtinAttention()
	if raw.Attention != nil {
		if err := mergo.Merge(&attention, *raw.Attention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge attention config: %w", err)
		}
	}

	events := builtinEvents()
	if raw.Events != nil {
		if err := mergo.Merge(&events, *raw.Events, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge events config: %w", err)
		}
	}

	snapshots := builtinSnapshots()
	if raw.Snapshots != nil && raw.Snapshots.RootDir != "" {
		snapshots.RootDir = raw.Snapshots.RootDir
	}

	broker := builtinBroker()
	if raw.Broker != nil {
		if err := mergo.Merge(&broker, *raw.Broker, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge broker config: %w", err)
		}
	}

	docPreferred := raw.DocumentationPreferred
	if len(docPreferred) == 0 {
		docPreferred = builtinDocumentationPreferred()
	}
	docSet := make(map[string]bool, len(docPreferred))
	for _, cat := range docPreferred {
		docSet[cat] = true
	}

	cfg := &Config{
		Roles:                  roles,
		Attention:              attention,
		Events:                 events,
		Snapshots:              snapshots,
		Broker:                 broker,
		DocumentationPreferred: docSet,
	}

	// Backend map keys are the canonical names; sorted for deterministic
	// startup probing order within a priority tier.
	names := make([]string, 0, len(raw.Backends))
	for name := range raw.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := raw.Backends[name]
		b.Name = name
		if b.ProbePath == "" {
			b.ProbePath = "/health"
		}
		cfg.Backends = append(cfg.Backends, b)
	}

	return cfg, nil
}
