package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/infra/adapter/persistence/postgres"
	"catchup-agent/internal/repository"
)

func conversationRow(c *entity.Conversation) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "visitor_id", "title", "type", "created_at", "updated_at"}).
		AddRow(c.ID, c.VisitorID, c.Title, c.Type, c.CreatedAt, c.UpdatedAt)
}

func TestConversationRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	want := &entity.Conversation{ID: 1, VisitorID: "visitor-1", Title: "New chat", Type: entity.ConversationChat, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversations`)).
		WithArgs("visitor-1", "New chat", entity.ConversationChat).
		WillReturnRows(conversationRow(want))

	repo := postgres.NewConversationRepo(db)
	got, err := repo.Create(context.Background(), "visitor-1", entity.ConversationChat, "New chat")
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM conversations`).
		WithArgs(int64(1), "visitor-1").
		WillReturnError(sqlmock.ErrCancelled)

	repo := postgres.NewConversationRepo(db)
	_, err := repo.Get(context.Background(), 1, "visitor-1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestConversationRepo_Get_OwnershipMiss(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM conversations`).
		WithArgs(int64(1), "other-visitor").
		WillReturnRows(sqlmock.NewRows([]string{"id", "visitor_id", "title", "type", "created_at", "updated_at"}))

	repo := postgres.NewConversationRepo(db)
	_, err := repo.Get(context.Background(), 1, "other-visitor")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRepo_List(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery(`FROM conversations`).
		WithArgs("visitor-1", 20, 0).
		WillReturnRows(conversationRow(&entity.Conversation{ID: 1, VisitorID: "visitor-1", Title: "chat", Type: entity.ConversationChat, CreatedAt: now, UpdatedAt: now}))

	repo := postgres.NewConversationRepo(db)
	got, err := repo.List(context.Background(), "visitor-1", repository.ConversationListFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("List err=%v len=%d", err, len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRepo_UpdateTitle_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE conversations SET title`)).
		WithArgs("renamed", int64(1), "visitor-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := postgres.NewConversationRepo(db)
	err := repo.UpdateTitle(context.Background(), 1, "visitor-1", "renamed")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRepo_AppendMessage(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages`)).
		WithArgs(int64(1), entity.RoleUser, "hello", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(42), now))

	repo := postgres.NewConversationRepo(db)
	msg := &entity.Message{ConversationID: 1, Role: entity.RoleUser, Content: "hello"}
	got, err := repo.AppendMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("AppendMessage err=%v", err)
	}
	if got.ID != 42 {
		t.Fatalf("want ID=42, got %d", got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRepo_RecentMessages_OrdersOldestFirst(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	t1 := time.Now().Add(-2 * time.Minute)
	t2 := time.Now().Add(-1 * time.Minute)

	mock.ExpectQuery(`FROM messages`).
		WithArgs(int64(1), "visitor-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "thinking_mode", "timestamp"}).
			AddRow(int64(2), int64(1), entity.RoleAssistant, "second", false, t2).
			AddRow(int64(1), int64(1), entity.RoleUser, "first", false, t1))

	repo := postgres.NewConversationRepo(db)
	got, err := repo.RecentMessages(context.Background(), 1, "visitor-1", 20)
	if err != nil {
		t.Fatalf("RecentMessages err=%v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("expected oldest-first ordering, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRepo_AllMessages_OrdersAscending(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	t1 := time.Now().Add(-2 * time.Minute)
	t2 := time.Now().Add(-1 * time.Minute)

	mock.ExpectQuery(`FROM messages`).
		WithArgs(int64(1), "visitor-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "thinking_mode", "timestamp"}).
			AddRow(int64(1), int64(1), entity.RoleUser, "first", false, t1).
			AddRow(int64(2), int64(1), entity.RoleAssistant, "second", false, t2))

	repo := postgres.NewConversationRepo(db)
	got, err := repo.AllMessages(context.Background(), 1, "visitor-1")
	if err != nil {
		t.Fatalf("AllMessages err=%v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("expected ascending ordering, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
