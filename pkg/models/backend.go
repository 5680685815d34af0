package models

import "time"

// BackendDescriptor describes a registered backend MCP server. Descriptors
// are transient, in-memory state owned by the backend registry; the backend
// itself is an external process.
type BackendDescriptor struct {
	Name      string        `json:"name" yaml:"name"`
	Transport TransportType `json:"transport" yaml:"transport"`

	// Endpoint is the HTTP URL for http/sse transports. For stdio
	// transports, Command and Args describe the child process instead.
	Endpoint string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Command  string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args     []string `json:"args,omitempty" yaml:"args,omitempty"`

	RoleTags []RoleTag       `json:"role_tags" yaml:"role_tags"`
	Priority BackendPriority `json:"priority" yaml:"priority"`

	// ProbePath is the HTTP health endpoint path (default "/health").
	// ProbePort, when non-zero, enables a TCP connect probe for stdio backends.
	ProbePath        string `json:"probe_path,omitempty" yaml:"probe_path,omitempty"`
	ProbePort        int    `json:"probe_port,omitempty" yaml:"probe_port,omitempty"`
	DefaultTimeoutMS int    `json:"default_timeout_ms,omitempty" yaml:"default_timeout_ms,omitempty"`

	// Extra fields from the registration payload are preserved but ignored.
	Extra map[string]any `json:"extra,omitempty" yaml:"-"`
}

// HasRoleTag reports whether the backend advertises the given capability.
func (d *BackendDescriptor) HasRoleTag(tag RoleTag) bool {
	for _, t := range d.RoleTags {
		if t == tag {
			return true
		}
	}
	return false
}

// BackendStatus is the registry's live view of a backend: the descriptor
// plus observed health and latency.
type BackendStatus struct {
	Descriptor          BackendDescriptor `json:"descriptor"`
	Health              HealthState       `json:"health"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	LastLatencyMS       int64             `json:"last_latency_ms"`
	LastProbe           time.Time         `json:"last_probe"`
	LastError           string            `json:"last_error,omitempty"`
}
