package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/repository"
	"catchup-agent/internal/resilience/circuitbreaker"
)

// ConversationRepo talks to Postgres directly for single-row lookups
// (QueryRowContext defers its error until Scan, so the breaker can't see
// it in time to trip) and through a circuit breaker for multi-row queries
// and writes, so a failing database doesn't pile up blocked goroutines
// behind it.
type ConversationRepo struct {
	db      *sql.DB
	breaker *circuitbreaker.DBCircuitBreaker
}

func NewConversationRepo(db *sql.DB) repository.ConversationRepository {
	return &ConversationRepo{db: db, breaker: circuitbreaker.NewDBCircuitBreaker(db)}
}

func (repo *ConversationRepo) Create(ctx context.Context, visitorID string, convType entity.ConversationType, title string) (*entity.Conversation, error) {
	const query = `
INSERT INTO conversations (visitor_id, title, type, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING id, visitor_id, title, type, created_at, updated_at`

	var conv entity.Conversation
	err := repo.db.QueryRowContext(ctx, query, visitorID, title, convType).Scan(
		&conv.ID, &conv.VisitorID, &conv.Title, &conv.Type, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return &conv, nil
}

func (repo *ConversationRepo) Get(ctx context.Context, id int64, visitorID string) (*entity.Conversation, error) {
	const query = `
SELECT id, visitor_id, title, type, created_at, updated_at
FROM conversations
WHERE id = $1 AND visitor_id = $2
LIMIT 1`

	var conv entity.Conversation
	err := repo.db.QueryRowContext(ctx, query, id, visitorID).Scan(
		&conv.ID, &conv.VisitorID, &conv.Title, &conv.Type, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &conv, nil
}

func (repo *ConversationRepo) List(ctx context.Context, visitorID string, filter repository.ConversationListFilter) ([]*entity.Conversation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	if filter.Type != "" {
		const query = `
SELECT id, visitor_id, title, type, created_at, updated_at
FROM conversations
WHERE visitor_id = $1 AND type = $2
ORDER BY updated_at DESC
LIMIT $3 OFFSET $4`
		rows, err = repo.breaker.QueryContext(ctx, query, visitorID, filter.Type, limit, filter.Offset)
	} else {
		const query = `
SELECT id, visitor_id, title, type, created_at, updated_at
FROM conversations
WHERE visitor_id = $1
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`
		rows, err = repo.breaker.QueryContext(ctx, query, visitorID, limit, filter.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conversations := make([]*entity.Conversation, 0, limit)
	for rows.Next() {
		var conv entity.Conversation
		if err := rows.Scan(&conv.ID, &conv.VisitorID, &conv.Title, &conv.Type, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	return conversations, rows.Err()
}

func (repo *ConversationRepo) UpdateTitle(ctx context.Context, id int64, visitorID string, title string) error {
	const query = `
UPDATE conversations SET title = $1, updated_at = now()
WHERE id = $2 AND visitor_id = $3`
	res, err := repo.breaker.ExecContext(ctx, query, title, id, visitorID)
	if err != nil {
		return fmt.Errorf("UpdateTitle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *ConversationRepo) Touch(ctx context.Context, id int64, visitorID string) error {
	const query = `
UPDATE conversations SET updated_at = now()
WHERE id = $1 AND visitor_id = $2`
	res, err := repo.breaker.ExecContext(ctx, query, id, visitorID)
	if err != nil {
		return fmt.Errorf("Touch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *ConversationRepo) Delete(ctx context.Context, id int64, visitorID string) error {
	const query = `DELETE FROM conversations WHERE id = $1 AND visitor_id = $2`
	res, err := repo.breaker.ExecContext(ctx, query, id, visitorID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *ConversationRepo) AppendMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	const query = `
INSERT INTO messages (conversation_id, role, content, thinking_mode, timestamp)
VALUES ($1, $2, $3, $4, now())
RETURNING id, timestamp`

	err := repo.db.QueryRowContext(ctx, query, msg.ConversationID, msg.Role, msg.Content, msg.ThinkingMode).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("AppendMessage: %w", err)
	}
	return msg, nil
}

// RecentMessages fetches the newest limit rows by timestamp descending,
// then reverses them so the caller sees oldest-first history ordering.
func (repo *ConversationRepo) RecentMessages(ctx context.Context, conversationID int64, visitorID string, limit int) ([]*entity.Message, error) {
	const query = `
SELECT m.id, m.conversation_id, m.role, m.content, m.thinking_mode, m.timestamp
FROM messages m
INNER JOIN conversations c ON c.id = m.conversation_id
WHERE m.conversation_id = $1 AND c.visitor_id = $2
ORDER BY m.timestamp DESC
LIMIT $3`

	rows, err := repo.breaker.QueryContext(ctx, query, conversationID, visitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentMessages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]*entity.Message, 0, limit)
	for rows.Next() {
		var msg entity.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.ThinkingMode, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("RecentMessages: Scan: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentMessages: rows.Err: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// AllMessages fetches every message for a conversation in ascending
// Timestamp order directly, with no reversal needed.
func (repo *ConversationRepo) AllMessages(ctx context.Context, conversationID int64, visitorID string) ([]*entity.Message, error) {
	const query = `
SELECT m.id, m.conversation_id, m.role, m.content, m.thinking_mode, m.timestamp
FROM messages m
INNER JOIN conversations c ON c.id = m.conversation_id
WHERE m.conversation_id = $1 AND c.visitor_id = $2
ORDER BY m.timestamp ASC`

	rows, err := repo.breaker.QueryContext(ctx, query, conversationID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("AllMessages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*entity.Message
	for rows.Next() {
		var msg entity.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.ThinkingMode, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("AllMessages: Scan: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllMessages: rows.Err: %w", err)
	}
	return messages, nil
}
