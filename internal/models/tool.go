package models

import (
	"fmt"
	"sort"
	"strings"
)

// ToolKind distinguishes tools served by a remote backend from tools the gateway implements itself.
type ToolKind string

const (
	ToolKindMCP    ToolKind = "mcp"
	ToolKindNative ToolKind = "native"
)

// DefaultReturnType is used when a backend does not describe a tool's result.
const DefaultReturnType = "any"

// ToolDefinition is an immutable description of one tool exposed through the gateway.
// Name is canonical: {backend}_{local}.
type ToolDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ParameterSpec `json:"parameters"`
	BackendName string                   `json:"server_name"`
	Kind        ToolKind                 `json:"tool_type" jsonschema:"enum=mcp,enum=native"`
	ReturnType  string                   `json:"return_type"`
}

// CanonicalToolName namespaces a backend-local tool name.
func CanonicalToolName(backend, local string) string {
	return backend + "_" + local
}

// LocalName returns the name the owning backend knows the tool by.
func (t ToolDefinition) LocalName() string {
	return strings.TrimPrefix(t.Name, t.BackendName+"_")
}

// ParameterNames returns the parameter names sorted for stable output.
func (t ToolDefinition) ParameterNames() []string {
	names := make([]string, 0, len(t.Parameters))
	for name := range t.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy so callers can never mutate catalog state.
func (t ToolDefinition) Clone() ToolDefinition {
	if t.Parameters != nil {
		params := make(map[string]ParameterSpec, len(t.Parameters))
		for name, p := range t.Parameters {
			params[name] = p.clone()
		}
		t.Parameters = params
	}
	return t
}

// Validate checks that the definition is well-formed and correctly namespaced.
func (t ToolDefinition) Validate() error {
	if t.BackendName == "" {
		return fmt.Errorf("tool %q has empty backend name", t.Name)
	}
	if t.LocalName() == "" || !strings.HasPrefix(t.Name, t.BackendName+"_") {
		return fmt.Errorf("tool %q is not namespaced under backend %q", t.Name, t.BackendName)
	}
	if t.Kind != ToolKindMCP && t.Kind != ToolKindNative {
		return fmt.Errorf("tool %q has unknown kind %q", t.Name, t.Kind)
	}
	for _, name := range t.ParameterNames() {
		if name == "" {
			return fmt.Errorf("tool %q has a parameter with an empty name", t.Name)
		}
		if err := t.Parameters[name].Validate(); err != nil {
			return fmt.Errorf("tool %q parameter %q: %w", t.Name, name, err)
		}
	}
	return nil
}

// ArgumentError lists every problem found with a set of call arguments.
type ArgumentError struct {
	Tool   string
	Issues []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Issues, "; "))
}

// ValidateArguments checks call arguments against the tool's parameters.
// Unknown arguments are reported, as are missing required ones.
func (t ToolDefinition) ValidateArguments(args map[string]any) error {
	var issues []string
	for _, name := range t.ParameterNames() {
		spec := t.Parameters[name]
		v, ok := args[name]
		if !ok || v == nil {
			if spec.Required {
				issues = append(issues, fmt.Sprintf("%s: required", name))
			}
			continue
		}
		if err := spec.ValidateValue(v); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", name, err))
		}
	}

	extra := make([]string, 0)
	for name := range args {
		if _, ok := t.Parameters[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		issues = append(issues, fmt.Sprintf("%s: unknown parameter", name))
	}

	if len(issues) > 0 {
		return &ArgumentError{Tool: t.Name, Issues: issues}
	}
	return nil
}
