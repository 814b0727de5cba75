package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"catchup-agent/internal/observability/metrics"
	"catchup-agent/internal/resilience/circuitbreaker"
	"catchup-agent/internal/resilience/retry"
)

// OpenAIConfig holds the parameters a generic OpenAI-compatible provider
// needs. BaseURL lets the same client target Azure OpenAI or a self-hosted
// gateway that speaks the same wire format.
type OpenAIConfig struct {
	BaseURL   string
	Model     string
	MaxTokens int
}

// DefaultOpenAIConfig returns production defaults for the OpenAI provider.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:     openai.GPT4o,
		MaxTokens: 4096,
	}
}

// OpenAIProvider implements Client against any OpenAI-compatible chat
// completions API.
type OpenAIProvider struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         OpenAIConfig
}

// NewOpenAIProvider builds an OpenAIProvider authenticated with apiKey. When
// config.BaseURL is set, the client targets that endpoint instead of the
// public OpenAI API.
func NewOpenAIProvider(apiKey string, config OpenAIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientConfig),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, tools []Tool, opts Options) (<-chan Delta, error) {
	req := p.buildRequest(messages, tools, opts)
	req.Stream = true

	start := time.Now()
	var stream *openai.ChatCompletionStream
	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.client.CreateChatCompletionStream(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("%w: circuit breaker open", ErrProvider)
			}
			return err
		}
		stream = cbResult.(*openai.ChatCompletionStream)
		return nil
	})
	if retryErr != nil {
		metrics.RecordLLMRequest("openai", "failure", time.Since(start))
		if errors.Is(retryErr, ErrProvider) {
			slog.Warn("openai circuit breaker open, request rejected")
			return nil, retryErr
		}
		return nil, classifyErr(retryErr)
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer stream.Close()
		processOpenAIStream(ctx, stream, out)
		metrics.RecordLLMRequest("openai", "success", time.Since(start))
	}()
	return out, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := p.buildRequest(messages, nil, opts)

	var result string
	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.client.CreateChatCompletion(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("%w: circuit breaker open", ErrProvider)
			}
			return err
		}

		resp := cbResult.(openai.ChatCompletionResponse)
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: empty response", ErrProvider)
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("openai complete failed after retries: %w", retryErr)
	}
	return result, nil
}

func (p *OpenAIProvider) buildRequest(messages []Message, tools []Tool, opts Options) openai.ChatCompletionRequest {
	model := p.config.Model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := p.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  convertMessages(messages),
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
	}
	return req
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case RoleUser:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, msg)
		case RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return result
}

func convertTools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// processOpenAIStream assembles tool-call fragments keyed by their stable
// delta index, since a single response can interleave multiple in-flight
// tool calls across chunks.
func processOpenAIStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- Delta) {
	for {
		select {
		case <-ctx.Done():
			out <- Delta{Err: classifyErr(ctx.Err())}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				out <- Delta{Done: true}
				return
			}
			out <- Delta{Err: classifyErr(err)}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			out <- Delta{Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			frag := &ToolCallFragment{Index: index}
			if tc.ID != "" {
				id := tc.ID
				frag.ID = &id
			}
			if tc.Function.Name != "" {
				name := tc.Function.Name
				frag.Name = &name
			}
			if tc.Function.Arguments != "" {
				args := tc.Function.Arguments
				frag.ArgumentsSubstring = &args
			}
			out <- Delta{ToolCallFragment: frag}
		}

		if choice.FinishReason != "" {
			out <- Delta{FinishReason: string(choice.FinishReason)}
		}
	}
}
