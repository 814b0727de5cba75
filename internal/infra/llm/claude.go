package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/sony/gobreaker"

	"catchup-agent/internal/observability/metrics"
	"catchup-agent/internal/resilience/circuitbreaker"
	"catchup-agent/internal/resilience/retry"
)

// ClaudeConfig holds the parameters the thinking-capable provider needs.
type ClaudeConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultClaudeConfig returns production defaults for the Claude provider.
func DefaultClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 4096,
		Timeout:   60 * time.Second,
	}
}

// ClaudeProvider implements Client against Anthropic's Messages API. It
// surfaces reasoning as a separate ThinkingText field on the Delta, which is
// what marks it as "thinking-capable" among the providers this package wires.
type ClaudeProvider struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         ClaudeConfig
}

// NewClaudeProvider builds a ClaudeProvider authenticated with apiKey.
func NewClaudeProvider(apiKey string, config ClaudeConfig) *ClaudeProvider {
	return &ClaudeProvider{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

func (p *ClaudeProvider) Stream(ctx context.Context, messages []Message, tools []Tool, opts Options) (<-chan Delta, error) {
	params, err := p.buildParams(messages, tools, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.client.Messages.NewStreaming(ctx, params), nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("%w: circuit breaker open", ErrProvider)
			}
			return err
		}
		stream = cbResult.(*ssestream.Stream[anthropic.MessageStreamEventUnion])
		return nil
	})
	if retryErr != nil {
		metrics.RecordLLMRequest("claude", "failure", time.Since(start))
		if errors.Is(retryErr, ErrProvider) {
			slog.Warn("claude circuit breaker open, request rejected")
			return nil, retryErr
		}
		return nil, classifyErr(retryErr)
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		processClaudeStream(stream, out)
		metrics.RecordLLMRequest("claude", "success", time.Since(start))
	}()
	return out, nil
}

func (p *ClaudeProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	params, err := p.buildParams(messages, nil, opts)
	if err != nil {
		return "", err
	}

	var result string
	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.client.Messages.New(ctx, params)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("%w: circuit breaker open", ErrProvider)
			}
			return err
		}

		message := cbResult.(*anthropic.Message)
		if len(message.Content) == 0 {
			return fmt.Errorf("%w: empty response", ErrProvider)
		}
		textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
		if !ok {
			return fmt.Errorf("%w: unexpected response content type", ErrProvider)
		}
		result = textBlock.Text
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("claude complete failed after retries: %w", retryErr)
	}
	return result, nil
}

func (p *ClaudeProvider) buildParams(messages []Message, tools []Tool, opts Options) (anthropic.MessageNewParams, error) {
	model := p.config.Model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := p.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}

	var system strings.Builder
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case RoleUser:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case RoleTool:
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}
	params.Messages = converted
	if system.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system.String()}}
	}

	if len(tools) > 0 {
		toolParams := make([]anthropic.ToolUnionParam, 0, len(tools))
		for _, t := range tools {
			schema := anthropic.ToolInputSchemaParam{
				Properties: t.Parameters["properties"],
			}
			toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
			toolParam.OfTool.Description = anthropic.String(t.Description)
			toolParams = append(toolParams, toolParam)
		}
		params.Tools = toolParams
	}

	return params, nil
}

// processClaudeStream converts Anthropic SSE events into Deltas. Claude
// streams one content block to completion before starting the next, so a
// monotonically incrementing local counter is a faithful stand-in for the
// stable per-fragment index the agent loop's assembler keys on.
func processClaudeStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- Delta) {
	blockIndex := -1

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			blockIndex++
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				id, name, idx := toolUse.ID, toolUse.Name, blockIndex
				out <- Delta{ToolCallFragment: &ToolCallFragment{Index: idx, ID: &id, Name: &name}}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- Delta{Text: delta.Text}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					out <- Delta{ThinkingText: delta.Thinking}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					substr, idx := delta.PartialJSON, blockIndex
					out <- Delta{ToolCallFragment: &ToolCallFragment{Index: idx, ArgumentsSubstring: &substr}}
				}
			}

		case "message_stop":
			out <- Delta{Done: true}
			return

		case "error":
			out <- Delta{Err: fmt.Errorf("%w: stream error", ErrTransport)}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- Delta{Err: classifyErr(err)}
		return
	}
	out <- Delta{Done: true}
}
