// Package tooling holds the catalogue of fleet operations the dispatch
// layer can invoke on behalf of the reasoning loop, and the registry that
// binds them once at startup.
package tooling

import (
	"context"
	"encoding/json"
	"fmt"

	"sophia/internal/domain"
	"sophia/internal/normalize"
)

// FleetTool is one named operation in the catalogue. Call never returns a
// Go error: every failure is rendered inside the result envelope so a bad
// call cannot abort the conversation.
type FleetTool interface {
	// Name returns the exact dispatch key the reasoning loop selects by.
	Name() string
	// Description returns a human-readable description for the caller.
	Description() string
	// Definition returns the JSON Schema string for the tool's input.
	Definition() string
	// Call normalizes the raw argument, executes the operation, and returns
	// the uniform result envelope.
	Call(ctx context.Context, arg normalize.Argument) domain.ToolResult
}

// ToolDefinition is the advertised shape of one catalogue entry, suitable
// for a function-calling API.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Registry holds FleetTools keyed by name. Constructed once at startup and
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	tools map[string]FleetTool
	order []string // registration order, for stable listings
}

// NewRegistry returns an empty, ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]FleetTool)}
}

// Register adds a tool. Returns an error if the tool is nil, a tool with
// the same name is already registered, or the tool's schema does not
// compile.
func (r *Registry) Register(tool FleetTool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	if err := CompileSchema(tool.Definition()); err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool with the given name. Lookup is exact-match and
// case-sensitive.
func (r *Registry) Get(name string) (FleetTool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns a ToolDefinition for every registered tool, in
// registration order, suitable for advertising to the reasoning loop.
func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: json.RawMessage(t.Definition()),
		})
	}
	return out
}
