package entity

import "time"

// ConversationType distinguishes a plain chat thread from an agent (tool-using) thread.
type ConversationType string

const (
	ConversationChat  ConversationType = "chat"
	ConversationAgent ConversationType = "agent"
)

// Conversation is an ownership-scoped thread of messages. Every non-append
// read operation in the store must filter by both ID and VisitorID.
type Conversation struct {
	ID         int64
	VisitorID  string
	Title      string
	Type       ConversationType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MessageRole enumerates the roles a Message may carry.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
	RoleSystem    MessageRole = "system"
)

// ThinkingOpenTag and ThinkingCloseTag delimit persisted reasoning content
// within Message.Content, per the single-field thinking encoding.
const (
	ThinkingOpenTag  = "[THINKING]"
	ThinkingCloseTag = "[/THINKING]"
)

// Message is one turn within a Conversation. Content is never null on the
// wire. Ordering within a conversation is by Timestamp ascending.
type Message struct {
	ID             int64
	ConversationID int64
	Role           MessageRole
	Content        string
	ThinkingMode   bool
	Timestamp      time.Time
}

// EncodeContent applies the thinking-channel encoding: when thinkingMode is
// set and thinking is non-empty, content is persisted as a single field
// prefixed with the well-known delimiter pair.
func EncodeContent(content, thinking string, thinkingMode bool) string {
	if thinkingMode && thinking != "" {
		return ThinkingOpenTag + thinking + ThinkingCloseTag + content
	}
	return content
}
