package repository

import (
	"context"

	"catchup-agent/internal/domain/entity"
)

// ConversationListFilter narrows ConversationRepository.List to a single
// conversation type when Type is non-empty.
type ConversationListFilter struct {
	Type   entity.ConversationType
	Offset int
	Limit  int
}

// ConversationRepository persists conversations and their messages. Every
// read keyed by conversation ID must also filter by visitorID: a visitor
// must never be able to observe another visitor's conversation, and a
// miss on that filter is indistinguishable from a miss on the ID.
type ConversationRepository interface {
	// Create inserts a new conversation owned by visitorID and returns it
	// with ID/CreatedAt/UpdatedAt populated.
	Create(ctx context.Context, visitorID string, convType entity.ConversationType, title string) (*entity.Conversation, error)

	// Get returns the conversation if it exists and is owned by visitorID.
	// Returns entity.ErrNotFound otherwise.
	Get(ctx context.Context, id int64, visitorID string) (*entity.Conversation, error)

	// List returns visitorID's conversations ordered by UpdatedAt
	// descending, newest first.
	List(ctx context.Context, visitorID string, filter ConversationListFilter) ([]*entity.Conversation, error)

	// UpdateTitle renames a conversation. Returns entity.ErrNotFound if it
	// does not exist or is not owned by visitorID.
	UpdateTitle(ctx context.Context, id int64, visitorID string, title string) error

	// Touch bumps UpdatedAt to the current time, used after a new message
	// is appended so the conversation resurfaces at the top of List.
	Touch(ctx context.Context, id int64, visitorID string) error

	// Delete removes a conversation and its messages. Returns
	// entity.ErrNotFound if it does not exist or is not owned by
	// visitorID.
	Delete(ctx context.Context, id int64, visitorID string) error

	// AppendMessage inserts a message and returns it with ID/Timestamp
	// populated. The caller is responsible for calling Touch afterwards;
	// AppendMessage does not implicitly bump the parent conversation.
	AppendMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error)

	// RecentMessages returns up to limit most recent messages for a
	// conversation owned by visitorID, in ascending Timestamp order
	// (oldest first), suitable for direct use as LLM history.
	RecentMessages(ctx context.Context, conversationID int64, visitorID string, limit int) ([]*entity.Message, error)

	// AllMessages returns every message of a conversation owned by
	// visitorID, in ascending Timestamp order, for the full-history
	// listing endpoint.
	AllMessages(ctx context.Context, conversationID int64, visitorID string) ([]*entity.Message, error)
}
