// Package tools implements the tool registry: named, schema-described
// handlers registered at startup and dispatched by name. Registries are
// explicit instances passed to whatever serves them; there is no package
// level registry.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
)

// Handler is the function signature for tool implementations.
// Handlers receive arguments already validated against the tool's
// parameter specs. The returned value must be JSON-encodable.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type entry struct {
	tool    protocol.Tool
	handler Handler
}

// Registry holds tool definitions and dispatches calls by name.
// The zero value is not usable; create instances with New.
// All methods are safe for concurrent use.
type Registry struct {
	entries map[string]entry
	order   []string
	mu      sync.RWMutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a new tool to the registry.
// Returns ErrAlreadyExists if a tool with the same name is already
// registered, ErrEmptyName if the descriptor carries no name.
func (r *Registry) Register(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return wrapName(ErrAlreadyExists, tool.Name)
	}

	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	r.order = append(r.order, tool.Name)
	return nil
}

// List returns the definitions of all registered tools in registration
// order. The returned slice is a copy.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Call validates args against the named tool's parameter specs and invokes
// its handler. Returns ErrNotFound for unregistered names, an
// *InvalidArgumentsError when a required parameter is missing, and an
// *ExecutionError wrapping the cause when the handler fails. Unknown extra
// argument keys are ignored.
//
// The handler runs on the calling goroutine; the registry lock is held
// only for the lookup, so concurrent calls execute independently.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil, wrapName(ErrNotFound, name)
	}

	if err := validate(e.tool, args); err != nil {
		return nil, err
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return nil, &ExecutionError{Tool: name, Err: err}
	}
	return result, nil
}

func validate(tool protocol.Tool, args map[string]any) error {
	var missing []string
	for param, spec := range tool.Parameters {
		if !spec.Required {
			continue
		}
		if _, present := args[param]; !present {
			missing = append(missing, param)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &InvalidArgumentsError{Tool: tool.Name, Missing: missing}
	}
	return nil
}
