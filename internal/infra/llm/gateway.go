package llm

import (
	"context"
	"fmt"
	"os"
)

// ProviderRoute describes one entry of the gateway's routing table: a
// provider tag maps to a concrete Client plus the model identifier it
// should be asked to serve.
type ProviderRoute struct {
	Client Client
	Model  string
}

// Gateway dispatches Stream/Complete calls to a concrete provider chosen by
// a provider tag carried on Options.Model, in the form "tag/model" (for
// example "claude/claude-sonnet-4-5" or "openai/gpt-4o"). A tag absent from
// the routing table falls back to the gateway's default provider, using the
// full tag string as the model identifier so self-hosted or newly added
// model names work without a code change.
type Gateway struct {
	routes  map[string]ProviderRoute
	fallback ProviderRoute
}

// NewGateway builds a Gateway from a routing table and a fallback route used
// for any provider tag the table doesn't recognise.
func NewGateway(routes map[string]ProviderRoute, fallback ProviderRoute) *Gateway {
	return &Gateway{routes: routes, fallback: fallback}
}

func (g *Gateway) resolve(requested string) (Client, string) {
	tag, model := splitProviderTag(requested)
	if route, ok := g.routes[tag]; ok {
		resolvedModel := route.Model
		if model != "" {
			resolvedModel = model
		}
		return route.Client, resolvedModel
	}
	if requested == "" {
		return g.fallback.Client, g.fallback.Model
	}
	return g.fallback.Client, requested
}

func (g *Gateway) Stream(ctx context.Context, messages []Message, tools []Tool, opts Options) (<-chan Delta, error) {
	client, model := g.resolve(opts.Model)
	if client == nil {
		return nil, fmt.Errorf("%w: no provider configured for %q", ErrProvider, opts.Model)
	}
	opts.Model = model
	return client.Stream(ctx, messages, tools, opts)
}

func (g *Gateway) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	client, model := g.resolve(opts.Model)
	if client == nil {
		return "", fmt.Errorf("%w: no provider configured for %q", ErrProvider, opts.Model)
	}
	opts.Model = model
	return client.Complete(ctx, messages, opts)
}

// splitProviderTag splits "tag/model" into its two parts. A string with no
// slash is treated as a bare tag with no model override.
func splitProviderTag(requested string) (tag, model string) {
	for i := 0; i < len(requested); i++ {
		if requested[i] == '/' {
			return requested[:i], requested[i+1:]
		}
	}
	return requested, ""
}

// BuildGatewayFromEnv wires a Gateway out of whichever provider credentials
// are present in the environment, following the same "required credential
// per selected provider, fail fast otherwise" convention used to select a
// summarizer backend. LLM_DEFAULT_PROVIDER picks the fallback route; it
// defaults to "claude".
func BuildGatewayFromEnv() (*Gateway, error) {
	routes := make(map[string]ProviderRoute)

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cfg := DefaultClaudeConfig()
		if model := os.Getenv("CLAUDE_MODEL"); model != "" {
			cfg.Model = model
		}
		routes["claude"] = ProviderRoute{Client: NewClaudeProvider(apiKey, cfg), Model: cfg.Model}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg := DefaultOpenAIConfig()
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			cfg.Model = model
		}
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
		routes["openai"] = ProviderRoute{Client: NewOpenAIProvider(apiKey, cfg), Model: cfg.Model}
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no LLM provider credentials configured (set ANTHROPIC_API_KEY or OPENAI_API_KEY)", ErrProvider)
	}

	defaultTag := os.Getenv("LLM_DEFAULT_PROVIDER")
	if defaultTag == "" {
		defaultTag = "claude"
	}
	fallback, ok := routes[defaultTag]
	if !ok {
		for _, route := range routes {
			fallback = route
			break
		}
	}

	return NewGateway(routes, fallback), nil
}
