// Package agent implements the tool registry and agent loop (C4/C5/C6) that
// drive the RSS assistant: a bounded multi-turn tool-calling loop against an
// LLM client, backed by a small fixed catalogue of RSS tools.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/observability/metrics"
)

// ToolSchema describes a tool the way the LLM expects to see it: name,
// description, and a JSON Schema for its parameters.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type registeredTool struct {
	schema  ToolSchema
	handler entity.ToolHandler
}

// Registry holds the fixed catalogue of tools the agent loop can dispatch.
// Registration happens once at construction time; it is not safe for
// concurrent mutation while the registry is being served.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool under name. Registering the same name twice overwrites
// the previous entry and logs a warning; names are case-sensitive.
func (r *Registry) Register(name, description string, parameters map[string]any, handler entity.ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		slog.Warn("tool re-registered, overwriting previous handler", slog.String("tool", name))
	}

	r.tools[name] = registeredTool{
		schema: ToolSchema{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		handler: handler,
	}
}

// DescribeAll returns the schema for every registered tool, in a stable
// projection independent of any particular LLM provider's wire format.
func (r *Registry) DescribeAll() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.schema)
	}
	return schemas
}

// Execute looks up name and invokes its handler with arguments. An unknown
// name returns entity.ErrUnknownTool; a handler failure is wrapped in
// *entity.ToolFailure so callers can surface the tool name alongside the
// underlying error.
func (r *Registry) Execute(ctx context.Context, name string, arguments map[string]any) (result any, err error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		metrics.RecordToolCall(name, "unknown")
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownTool, name)
	}

	result, err = tool.handler(ctx, arguments)
	if err != nil {
		metrics.RecordToolCall(name, "failure")
		return nil, &entity.ToolFailure{ToolName: name, Err: err}
	}

	metrics.RecordToolCall(name, "success")
	return result, nil
}
