package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParams_CollapsesSystemMessages(t *testing.T) {
	p := &ClaudeProvider{config: ClaudeConfig{Model: "claude-sonnet-4-5", MaxTokens: 1024}}

	messages := []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleSystem, Content: "answer in english"},
		{Role: RoleUser, Content: "hello"},
	}

	params, err := p.buildParams(messages, nil, Options{})
	require.NoError(t, err)

	require.Len(t, params.System, 1)
	assert.Equal(t, "be terse\nanswer in english", params.System[0].Text)
	assert.Len(t, params.Messages, 1)
}

func TestBuildParams_OptionsOverrideModelAndMaxTokens(t *testing.T) {
	p := &ClaudeProvider{config: ClaudeConfig{Model: "claude-sonnet-4-5", MaxTokens: 1024}}

	params, err := p.buildParams(nil, nil, Options{Model: "claude-opus-4-1", MaxTokens: 8192})
	require.NoError(t, err)

	assert.Equal(t, anthropic.Model("claude-opus-4-1"), params.Model)
	assert.Equal(t, int64(8192), params.MaxTokens)
}

func TestBuildParams_ToolResultBecomesUserMessage(t *testing.T) {
	p := &ClaudeProvider{config: ClaudeConfig{Model: "claude-sonnet-4-5", MaxTokens: 1024}}

	messages := []Message{
		{Role: RoleTool, Content: "42", ToolCallID: "call_1"},
	}

	params, err := p.buildParams(messages, nil, Options{})
	require.NoError(t, err)
	require.Len(t, params.Messages, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
}

func TestBuildParams_ToolsConvertWithDescription(t *testing.T) {
	p := &ClaudeProvider{config: ClaudeConfig{Model: "claude-sonnet-4-5", MaxTokens: 1024}}

	tools := []Tool{
		{Name: "fetch_rss_news", Description: "fetch cached articles", Parameters: map[string]any{
			"properties": map[string]any{},
		}},
	}

	params, err := p.buildParams(nil, tools, Options{})
	require.NoError(t, err)
	require.Len(t, params.Tools, 1)
	require.NotNil(t, params.Tools[0].OfTool)
	assert.Equal(t, "fetch_rss_news", params.Tools[0].OfTool.Name)
}
