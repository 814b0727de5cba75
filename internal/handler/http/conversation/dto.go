// Package conversation provides HTTP handlers for conversation and message
// endpoints: CRUD over threads, title synthesis, and the streaming chat
// turn that drives the agent loop.
package conversation

import (
	"time"

	"catchup-agent/internal/domain/entity"
)

// DTO is the wire representation of a Conversation.
type DTO struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDTO(c *entity.Conversation) DTO {
	return DTO{ID: c.ID, Title: c.Title, Type: string(c.Type), CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func toDTOList(cs []*entity.Conversation) []DTO {
	out := make([]DTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toDTO(c))
	}
	return out
}

// MessageDTO is the wire representation of a Message.
type MessageDTO struct {
	ID           int64     `json:"id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	ThinkingMode bool      `json:"thinking_mode"`
	Timestamp    time.Time `json:"timestamp"`
}

func toMessageDTOList(ms []*entity.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, MessageDTO{ID: m.ID, Role: string(m.Role), Content: m.Content, ThinkingMode: m.ThinkingMode, Timestamp: m.Timestamp})
	}
	return out
}
