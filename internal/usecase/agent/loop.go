package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/infra/llm"
	"catchup-agent/internal/observability/metrics"
)

// EventKind discriminates the events a Loop run emits, matching the
// transport's framing discriminator one-for-one.
type EventKind string

const (
	EventThinking   EventKind = "thinking"
	EventDelta      EventKind = "delta"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// Event is one unit of the lazy sequence a Loop run produces.
type Event struct {
	Kind      EventKind
	Text      string
	ToolName  string
	ToolID    string
	ToolArgs  map[string]any
	Result    any
	IsError   bool
	SoftLimit bool
	Err       error
}

const defaultMaxIterations = 5

// Loop drives the bounded tool-calling controller over an LLM client and a
// tool registry.
type Loop struct {
	client        llm.Client
	registry      *Registry
	system        string
	maxIterations int
}

// NewLoop builds a Loop against client and registry. system is the fixed
// directive prefixed onto every outbound context.
func NewLoop(client llm.Client, registry *Registry, system string) *Loop {
	return &Loop{client: client, registry: registry, system: system, maxIterations: defaultMaxIterations}
}

// pendingCall is an in-flight tool-call fragment being assembled by index.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// callSignature is what the duplicate-call guard remembers about a prior
// execution: the name, plus the one argument field each tool's "similar"
// definition keys on.
type callSignature struct {
	name  string
	query string // only meaningful for filter_rss_news
}

// Run drives the loop to completion, pushing Events onto the returned
// channel. The channel is closed after a Done or Error event.
func (l *Loop) Run(ctx context.Context, history []llm.Message, opts llm.Options) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		l.run(ctx, history, opts, out)
	}()
	return out
}

func (l *Loop) run(ctx context.Context, history []llm.Message, opts llm.Options, out chan<- Event) {
	turns := append([]llm.Message{{Role: llm.RoleSystem, Content: l.system}}, history...)
	tools := toLLMTools(l.registry.DescribeAll())
	var executed []callSignature

	iteration := 0
	for ; iteration < l.maxIterations; iteration++ {
		deltas, err := l.client.Stream(ctx, turns, tools, opts)
		if err != nil {
			metrics.RecordAgentLoopIterations(iteration + 1)
			out <- Event{Kind: EventError, Err: err}
			return
		}

		text, calls, streamErr := consumeStream(deltas, out)
		if streamErr != nil {
			metrics.RecordAgentLoopIterations(iteration + 1)
			out <- Event{Kind: EventError, Err: streamErr}
			return
		}

		if len(calls) == 0 {
			turns = append(turns, llm.Message{Role: llm.RoleAssistant, Content: text})
			metrics.RecordAgentLoopIterations(iteration + 1)
			out <- Event{Kind: EventDone, Text: text}
			return
		}

		turns = append(turns, llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: calls})

		for _, call := range calls {
			args, sig := decodeCallArgs(call)

			if isDuplicate(executed, callSignature{name: call.Name, query: sig}) {
				warning := fmt.Sprintf("⚠️ %s was already called with equivalent arguments; rely on the prior result.", call.Name)
				metrics.RecordToolCall(call.Name, "skipped_duplicate")
				out <- Event{Kind: EventToolResult, ToolName: call.Name, ToolID: call.ID, Result: warning}
				turns = append(turns, llm.Message{Role: llm.RoleTool, Content: warning, ToolCallID: call.ID})
				continue
			}

			executed = append(executed, callSignature{name: call.Name, query: sig})
			out <- Event{Kind: EventToolCall, ToolName: call.Name, ToolID: call.ID, ToolArgs: args}

			result, execErr := l.registry.Execute(ctx, call.Name, args)
			serialised, isErr := serialiseToolResult(result, execErr)
			out <- Event{Kind: EventToolResult, ToolName: call.Name, ToolID: call.ID, Result: serialised, IsError: isErr}
			turns = append(turns, llm.Message{Role: llm.RoleTool, Content: serialised, ToolCallID: call.ID})
		}
	}

	metrics.RecordAgentLoopIterations(iteration)
	out <- Event{Kind: EventDone, SoftLimit: true}
}

// consumeStream concatenates text deltas and assembles tool-call fragments
// keyed by their stable index, preserving first-seen index order in the
// returned call list.
func consumeStream(deltas <-chan llm.Delta, out chan<- Event) (string, []llm.ToolCall, error) {
	var text strings.Builder
	pending := make(map[int]*pendingCall)
	var order []int

	for d := range deltas {
		if d.Err != nil {
			return "", nil, d.Err
		}
		if d.Text != "" {
			text.WriteString(d.Text)
			out <- Event{Kind: EventDelta, Text: d.Text}
		}
		if d.ThinkingText != "" {
			out <- Event{Kind: EventThinking, Text: d.ThinkingText}
		}
		if frag := d.ToolCallFragment; frag != nil {
			call, seen := pending[frag.Index]
			if !seen {
				call = &pendingCall{}
				pending[frag.Index] = call
				order = append(order, frag.Index)
			}
			if frag.ID != nil {
				call.id = *frag.ID
			}
			if frag.Name != nil {
				call.name = *frag.Name
			}
			if frag.ArgumentsSubstring != nil {
				call.args.WriteString(*frag.ArgumentsSubstring)
			}
		}
		if d.Done {
			break
		}
	}

	calls := make([]llm.ToolCall, 0, len(order))
	for _, idx := range order {
		call := pending[idx]
		calls = append(calls, llm.ToolCall{ID: call.id, Name: call.name, Arguments: call.args.String()})
	}
	return text.String(), calls, nil
}

// decodeCallArgs decodes a tool call's raw argument string, falling back to
// an empty mapping on malformed JSON. It also extracts the "query" field
// used by the duplicate-call guard's similarity test for filter_rss_news.
func decodeCallArgs(call llm.ToolCall) (map[string]any, string) {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			slog.Warn("tool call arguments were not valid JSON, treating as empty", slog.String("tool", call.Name))
			args = map[string]any{}
		}
	}
	query, _ := args["query"].(string)
	return args, query
}

// isDuplicate implements the duplicate-call guard: a new call is similar to
// a prior record when the name matches and, for filter_rss_news, the query
// also matches. Any other tool name matching is always similar. A call is
// suppressed once it has a similar record appearing twice already.
func isDuplicate(executed []callSignature, candidate callSignature) bool {
	count := 0
	for _, e := range executed {
		if e.name != candidate.name {
			continue
		}
		if candidate.name == "filter_rss_news" && e.query != candidate.query {
			continue
		}
		count++
	}
	return count >= 2
}

// serialiseToolResult renders a handler's return value as the tool message
// content: JSON for mappings/lists, the literal string otherwise. A
// ToolFailure is embedded as an error message rather than propagated, so
// the model can recover.
func serialiseToolResult(result any, err error) (string, bool) {
	if err != nil {
		var failure *entity.ToolFailure
		if errors.As(err, &failure) {
			return fmt.Sprintf("tool %q failed: %s", failure.ToolName, failure.Err.Error()), true
		}
		return fmt.Sprintf("tool failed: %s", err.Error()), true
	}

	switch v := result.(type) {
	case string:
		return v, false
	default:
		data, marshalErr := json.Marshal(v)
		if marshalErr != nil {
			return fmt.Sprintf("%v", v), false
		}
		return string(data), false
	}
}

func toLLMTools(schemas []ToolSchema) []llm.Tool {
	tools := make([]llm.Tool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, llm.Tool{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return tools
}
