package model

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Tool is a named host operation that a guest program can call.
// Tools are the only way a program can reach anything outside its environment,
// so they must be safe to call with untrusted arguments.
type Tool interface {
	Name() string
	Description() string
	// Call runs the tool. Arguments and the result use plain Go values:
	// nil, bool, float64, string, []any and map[string]any.
	Call(ctx context.Context, args []any) (any, error)
}

// ToolSet is an immutable set of tools indexed by name.
// The zero value is an empty set.
type ToolSet struct {
	tools map[string]Tool
}

// NewToolSet returns a new tool set. Duplicated or empty names are not valid.
func NewToolSet(tools ...Tool) (ToolSet, error) {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t == nil {
			return ToolSet{}, fmt.Errorf("nil tool: %w", ErrNotValid)
		}
		name := t.Name()
		if name == "" {
			return ToolSet{}, fmt.Errorf("tool name is required: %w", ErrNotValid)
		}
		if _, ok := m[name]; ok {
			return ToolSet{}, fmt.Errorf("tool %q: %w", name, ErrAlreadyExists)
		}
		m[name] = t
	}

	return ToolSet{tools: m}, nil
}

// Get returns a tool by name.
func (t ToolSet) Get(name string) (Tool, bool) {
	tool, ok := t.tools[name]
	return tool, ok
}

// Names returns the sorted tool names.
func (t ToolSet) Names() []string {
	return slices.Sorted(maps.Keys(t.tools))
}

// Len returns the number of tools.
func (t ToolSet) Len() int { return len(t.tools) }
