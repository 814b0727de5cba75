package conversation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/conversation"
	"catchup-agent/internal/handler/http/visitor"
	"catchup-agent/internal/infra/llm"
	"catchup-agent/internal/repository"
	"catchup-agent/internal/usecase/agent"
	convUC "catchup-agent/internal/usecase/conversation"
)

type fakeStore struct {
	conversations map[int64]*entity.Conversation
	messages      map[int64][]*entity.Message
	nextID        int64
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
	_, err := f.Get(ctx, id, visitorID)
	return err
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
	return f.messages[conversationID], nil
}

func (f *fakeStore) AllMessages(ctx context.Context, conversationID int64, visitorID string) ([]*entity.Message, error) {
	return f.messages[conversationID], nil
}

func withVisitor(req *http.Request, id string) *http.Request {
	return req.WithContext(visitor.WithVisitorID(req.Context(), id))
}

func TestCreateHandler(t *testing.T) {
	svc := convUC.NewService(newFakeStore(), nil, 20)
	h := conversation.CreateHandler{Svc: svc}

	body := strings.NewReader(`{"title":"My chat"}`)
	req := withVisitor(httptest.NewRequest(http.MethodPost, "/conversations", body), "visitor-1")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var dto conversation.DTO
	if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Title != "My chat" || dto.Type != string(entity.ConversationChat) {
		t.Fatalf("unexpected dto: %+v", dto)
	}
}

func TestGetHandler_OwnershipMismatchIs404(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	conv, _ := svc.Create(context.Background(), "owner", entity.ConversationChat, "")

	h := conversation.GetHandler{Svc: svc}
	req := withVisitor(httptest.NewRequest(http.MethodGet, "/conversations/"+itoa(conv.ID), nil), "intruder")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] != "not found or access denied" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestDeleteHandler(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	conv, _ := svc.Create(context.Background(), "owner", entity.ConversationChat, "")

	h := conversation.DeleteHandler{Svc: svc}
	req := withVisitor(httptest.NewRequest(http.MethodDelete, "/conversations/"+itoa(conv.ID), nil), "owner")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestListHandler_FiltersByVisitor(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	_, _ = svc.Create(context.Background(), "owner", entity.ConversationChat, "mine")
	_, _ = svc.Create(context.Background(), "someone-else", entity.ConversationChat, "theirs")

	h := conversation.ListHandler{Svc: svc}
	req := withVisitor(httptest.NewRequest(http.MethodGet, "/conversations", nil), "owner")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var dtos []conversation.DTO
	if err := json.NewDecoder(rec.Body).Decode(&dtos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dtos) != 1 || dtos[0].Title != "mine" {
		t.Fatalf("expected only owner's conversation, got %+v", dtos)
	}
}

func TestUpdateTitleHandler_RequiresTitle(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	conv, _ := svc.Create(context.Background(), "owner", entity.ConversationChat, "")

	h := conversation.UpdateTitleHandler{Svc: svc}
	req := withVisitor(httptest.NewRequest(http.MethodPut, "/conversations/"+itoa(conv.ID)+"/title", strings.NewReader(`{"title":""}`)), "owner")
	req.SetPathValue("id", itoa(conv.ID))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestGenerateTitleHandler_FallsBackAndPersists(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	conv, _ := svc.Create(context.Background(), "owner", entity.ConversationChat, "")

	h := conversation.GenerateTitleHandler{Svc: svc}
	req := withVisitor(httptest.NewRequest(http.MethodPost, "/conversations/"+itoa(conv.ID)+"/generate-title", strings.NewReader(`{"first_message":"What's new in Go generics this week?"}`)), "owner")
	req.SetPathValue("id", itoa(conv.ID))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	updated, _ := svc.Get(context.Background(), conv.ID, "owner")
	if len([]rune(updated.Title)) > 15 {
		t.Fatalf("persisted title exceeds 15 runes: %q", updated.Title)
	}
}

func TestMessagesHandler_OwnershipMismatchIs404(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	conv, _ := svc.Create(context.Background(), "owner", entity.ConversationChat, "")

	h := conversation.MessagesHandler{Svc: svc}
	req := withVisitor(httptest.NewRequest(http.MethodGet, "/conversations/"+itoa(conv.ID)+"/messages", nil), "intruder")
	req.SetPathValue("id", itoa(conv.ID))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

type fakeLLMClient struct{}

func (f *fakeLLMClient) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool, opts llm.Options) (<-chan llm.Delta, error) {
	out := make(chan llm.Delta, 2)
	out <- llm.Delta{Text: "hi there"}
	out <- llm.Delta{Done: true}
	close(out)
	return out, nil
}

func (f *fakeLLMClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return "", errors.New("not used")
}

func TestStreamHandler_WritesEventsAndPersistsTurn(t *testing.T) {
	store := newFakeStore()
	svc := convUC.NewService(store, nil, 20)
	conv, _ := svc.Create(context.Background(), "owner", entity.ConversationChat, "")

	loop := agent.NewLoop(&fakeLLMClient{}, agent.NewRegistry(), "you are a helpful assistant")
	h := conversation.StreamHandler{Svc: svc, Loop: loop, LLMOpts: llm.Options{}, Logger: discardLogger()}

	req := withVisitor(httptest.NewRequest(http.MethodPost, "/conversations/"+itoa(conv.ID)+"/stream", bytes.NewReader([]byte(`{"message":"hello"}`))), "owner")
	req.SetPathValue("id", itoa(conv.ID))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "event: delta") || !strings.Contains(rec.Body.String(), "event: done") {
		t.Fatalf("expected delta and done frames, body:\n%s", rec.Body.String())
	}

	msgs, _ := svc.Messages(context.Background(), conv.ID, "owner")
	if len(msgs) != 2 || msgs[0].Role != entity.RoleUser || msgs[1].Role != entity.RoleAssistant {
		t.Fatalf("expected user+assistant turns persisted, got %+v", msgs)
	}
}
