package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/infra/llm"
	"catchup-agent/internal/repository"
)

type fakeStore struct {
	conversations map[int64]*entity.Conversation
	messages      map[int64][]*entity.Message
	nextID        int64
	touched       []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[int64]*entity.Conversation{}, messages: map[int64][]*entity.Message{}}
}

func (f *fakeStore) Create(ctx context.Context, visitorID string, convType entity.ConversationType, title string) (*entity.Conversation, error) {
	f.nextID++
	conv := &entity.Conversation{ID: f.nextID, VisitorID: visitorID, Title: title, Type: convType, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeStore) Get(ctx context.Context, id int64, visitorID string) (*entity.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok || conv.VisitorID != visitorID {
		return nil, entity.ErrNotFound
	}
	return conv, nil
}

func (f *fakeStore) List(ctx context.Context, visitorID string, filter repository.ConversationListFilter) ([]*entity.Conversation, error) {
	var out []*entity.Conversation
	for _, c := range f.conversations {
		if c.VisitorID == visitorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTitle(ctx context.Context, id int64, visitorID, title string) error {
	conv, err := f.Get(ctx, id, visitorID)
	if err != nil {
		return err
	}
	conv.Title = title
	return nil
}

func (f *fakeStore) Touch(ctx context.Context, id int64, visitorID string) error {
	if _, err := f.Get(ctx, id, visitorID); err != nil {
		return err
	}
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id int64, visitorID string) error {
	if _, err := f.Get(ctx, id, visitorID); err != nil {
		return err
	}
	delete(f.conversations, id)
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	msg.ID = int64(len(f.messages[msg.ConversationID]) + 1)
	msg.Timestamp = time.Now()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)
	return msg, nil
}

func (f *fakeStore) RecentMessages(ctx context.Context, conversationID int64, visitorID string, limit int) ([]*entity.Message, error) {
	all := f.messages[conversationID]
	if len(all) <= limit {
		return all, nil
	}
	return all[len(all)-limit:], nil
}

func (f *fakeStore) AllMessages(ctx context.Context, conversationID int64, visitorID string) ([]*entity.Message, error) {
	return f.messages[conversationID], nil
}

type fakeLLM struct {
	completeFn func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error)
}

func (f *fakeLLM) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool, opts llm.Options) (<-chan llm.Delta, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return f.completeFn(ctx, messages, opts)
}

func TestService_AppendMessage_TouchesConversation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, 20)

	conv, _ := svc.Create(context.Background(), "visitor-1", entity.ConversationChat, "")
	_, err := svc.AppendMessage(context.Background(), conv.ID, "visitor-1", entity.RoleUser, "hello", false)
	if err != nil {
		t.Fatalf("AppendMessage err=%v", err)
	}
	if len(store.touched) != 1 || store.touched[0] != conv.ID {
		t.Fatalf("expected conversation touched, got %v", store.touched)
	}
}

func TestService_GenerateTitle_FallsBackOnLLMError(t *testing.T) {
	store := newFakeStore()
	llmClient := &fakeLLM{completeFn: func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
		return "", errors.New("provider down")
	}}
	svc := NewService(store, llmClient, 20)

	got := svc.GenerateTitle(context.Background(), "What's the weather like in Tokyo today?")
	want := "What's the weat"[:15]
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestService_GenerateTitle_TruncatesLLMOutput(t *testing.T) {
	store := newFakeStore()
	llmClient := &fakeLLM{completeFn: func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
		return "A much longer title than allowed", nil
	}}
	svc := NewService(store, llmClient, 20)

	got := svc.GenerateTitle(context.Background(), "hello")
	if len([]rune(got)) != maxTitleRunes {
		t.Fatalf("expected title truncated to %d runes, got %q (%d runes)", maxTitleRunes, got, len([]rune(got)))
	}
}

func TestService_History_ReturnsLLMMessages(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, 20)

	conv, _ := svc.Create(context.Background(), "visitor-1", entity.ConversationChat, "")
	_, _ = svc.AppendMessage(context.Background(), conv.ID, "visitor-1", entity.RoleUser, "hi", false)
	_, _ = svc.AppendMessage(context.Background(), conv.ID, "visitor-1", entity.RoleAssistant, "hello!", false)

	history, err := svc.History(context.Background(), conv.ID, "visitor-1")
	if err != nil {
		t.Fatalf("History err=%v", err)
	}
	if len(history) != 2 || history[0].Role != llm.RoleUser || history[1].Role != llm.RoleAssistant {
		t.Fatalf("unexpected history: %+v", history)
	}
}
