package entity

import "context"

// ToolHandler is the pure-value-in / value-out contract a tool implements.
// Arguments arrive as a decoded JSON mapping; the return value must be
// JSON-serialisable. A handler may return an error, which the agent loop
// captures as a ToolFailure.
type ToolHandler func(ctx context.Context, arguments map[string]any) (any, error)

// ToolDefinition names a tool and binds its schema to its handler. Names are
// unique and case-sensitive within a Registry.
type ToolDefinition struct {
	Name        string
	Description string
	// ParameterSchema is a JSON Schema object describing the handler's
	// expected arguments.
	ParameterSchema map[string]any
	Handler         ToolHandler
}

// ToolCallRecord is appended to the per-request call list as each tool
// dispatch occurs. It is never persisted beyond the request's lifetime.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments map[string]any
}
