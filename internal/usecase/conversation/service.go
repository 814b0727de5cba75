// Package conversation implements the business logic layered over
// repository.ConversationRepository: ownership-scoped CRUD, message
// history bounded to a configured window, and best-effort title
// synthesis via the LLM gateway.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/infra/llm"
	"catchup-agent/internal/repository"
	"catchup-agent/internal/utils/text"
)

// Service wraps a ConversationRepository with the operations the HTTP
// handlers and the agent loop driver consume.
type Service struct {
	store      repository.ConversationRepository
	llmClient  llm.Client
	maxHistory int
}

// NewService builds a Service. maxHistory bounds RecentMessages and should
// come from AppConfig.MaxHistoryMessages.
func NewService(store repository.ConversationRepository, llmClient llm.Client, maxHistory int) *Service {
	return &Service{store: store, llmClient: llmClient, maxHistory: maxHistory}
}

func (s *Service) Create(ctx context.Context, visitorID string, convType entity.ConversationType, title string) (*entity.Conversation, error) {
	if convType == "" {
		convType = entity.ConversationChat
	}
	return s.store.Create(ctx, visitorID, convType, title)
}

func (s *Service) Get(ctx context.Context, id int64, visitorID string) (*entity.Conversation, error) {
	return s.store.Get(ctx, id, visitorID)
}

func (s *Service) List(ctx context.Context, visitorID string, filter repository.ConversationListFilter) ([]*entity.Conversation, error) {
	return s.store.List(ctx, visitorID, filter)
}

func (s *Service) UpdateTitle(ctx context.Context, id int64, visitorID, title string) error {
	return s.store.UpdateTitle(ctx, id, visitorID, title)
}

func (s *Service) Delete(ctx context.Context, id int64, visitorID string) error {
	return s.store.Delete(ctx, id, visitorID)
}

// AppendMessage persists a message and bumps the parent conversation's
// updated_at so it resurfaces at the top of List.
func (s *Service) AppendMessage(ctx context.Context, conversationID int64, visitorID string, role entity.MessageRole, content string, thinkingMode bool) (*entity.Message, error) {
	msg := &entity.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ThinkingMode:   thinkingMode,
	}
	appended, err := s.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := s.store.Touch(ctx, conversationID, visitorID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return appended, nil
}

// History returns up to maxHistory prior messages converted to the LLM
// wire vocabulary, ready to prepend the new user turn onto.
func (s *Service) History(ctx context.Context, conversationID int64, visitorID string) ([]llm.Message, error) {
	records, err := s.store.RecentMessages(ctx, conversationID, visitorID, s.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	out := make([]llm.Message, 0, len(records))
	for _, m := range records {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out, nil
}

// Messages returns the full ordered history of a conversation, for the
// GET .../messages endpoint (unbounded, unlike History).
func (s *Service) Messages(ctx context.Context, conversationID int64, visitorID string) ([]*entity.Message, error) {
	records, err := s.store.AllMessages(ctx, conversationID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("all messages: %w", err)
	}
	return records, nil
}

const maxTitleRunes = 15

// GenerateTitle derives a short title from the conversation's first
// message via a single Complete call. Per the resolved Open Question, it
// never propagates an error: any LLM failure falls back silently to a
// truncated prefix of firstMessage.
func (s *Service) GenerateTitle(ctx context.Context, firstMessage string) string {
	if s.llmClient != nil {
		prompt := []llm.Message{
			{Role: llm.RoleSystem, Content: "Produce a title of at most 15 characters summarising the user's message. Reply with only the title, no punctuation or quotes."},
			{Role: llm.RoleUser, Content: firstMessage},
		}
		if title, err := s.llmClient.Complete(ctx, prompt, llm.Options{MaxTokens: 32, Temperature: 0}); err == nil {
			if trimmed := truncateRunes(title, maxTitleRunes); trimmed != "" {
				return trimmed
			}
		}
	}
	return truncateRunes(firstMessage, maxTitleRunes)
}

// truncateRunes trims s to at most n runes, trimming surrounding
// whitespace first so short inputs aren't padded with spaces.
func truncateRunes(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if text.CountRunes(string(runes)) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
