package protocol

import "sort"

// ParameterSpec describes a single tool parameter. Type uses JSON Schema
// primitive names ("string", "number", "integer", "boolean").
type ParameterSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Tool defines a remotely callable function exposed by a serving agent.
// This is the canonical tool descriptor type used across the bridge.
// Descriptors are immutable after registration; consumers receive copies.
type Tool struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
}

// InputSchema renders the tool's parameters as the JSON Schema object shape
// MCP-dialect clients expect: {type: "object", properties: {...}, required: [...]}.
// Required names are emitted in sorted order so the output is deterministic.
func (t Tool) InputSchema() map[string]any {
	properties := make(map[string]any, len(t.Parameters))
	var required []string
	for name, spec := range t.Parameters {
		prop := map[string]any{"type": spec.Type}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
