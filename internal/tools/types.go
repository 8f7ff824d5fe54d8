// Package tools provides the capability registry for reflex.
//
// Every side-effecting operation the agent can reach is described by a
// Descriptor and registered here. The guardrail engine checks generated
// plans against the registry, and the sandbox dispatcher resolves the
// per-run capability set from it.
//
// Flow:
//
//	Manifest/Builtin → Registry.Register() → Guardrail check → Dispatcher.Invoke()
package tools

import (
	"context"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Schema defines the JSON schema for tool arguments and results.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required" yaml:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties" yaml:"properties"`
}

// InvokeFunc is the signature for capability invocation.
// Returns the result string and any error.
type InvokeFunc func(ctx context.Context, args map[string]any) (string, error)

// Descriptor describes a single named capability.
// Descriptors are loaded once at startup (plus manifest hot reload)
// and are read-only thereafter.
type Descriptor struct {
	// Name is the unique identifier within the registry.
	Name string `yaml:"name"`

	// ServerID identifies the owning tool server ("builtin" for local tools).
	ServerID string `yaml:"server_id"`

	// Description explains what the capability does.
	// Included verbatim in generator prompts.
	Description string `yaml:"description"`

	// Parameters defines the expected arguments.
	Parameters Schema `yaml:"parameters"`

	// Result describes the result shape.
	Result Schema `yaml:"result"`

	// Tags classify the capability (e.g. "network", "pure").
	Tags []string `yaml:"tags"`

	// Invoke runs the capability. Bound at registration time;
	// never serialized.
	Invoke InvokeFunc `yaml:"-"`
}

// Validate checks if the descriptor is well formed.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return ErrToolNameEmpty
	}
	if d.Invoke == nil {
		return ErrToolInvokeNil
	}
	return nil
}

// HasTag reports whether the descriptor carries the given tag.
func (d *Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Result wraps the outcome of a capability invocation with metadata.
type Result struct {
	// ToolName identifies which capability was invoked.
	ToolName string

	// Value is the string output.
	Value string

	// Err is set if the invocation failed.
	Err error

	// DurationMs is how long the invocation took.
	DurationMs int64
}

// IsSuccess returns true if the invocation completed without error.
func (r *Result) IsSuccess() bool {
	return r.Err == nil
}
