// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article, Conversation, and Message,
// along with their validation rules and domain-specific errors.
package entity

import (
	"encoding/json"
	"time"
)

// Article represents a single normalised entry parsed from an RSS/Atom feed.
// Title and Link are mandatory; Description may be empty but is never absent.
// PubDate is nil when the source entry carried no parseable publish date.
type Article struct {
	Title       string
	Link        string
	Description string
	PubDate     *time.Time
	Author      string
	Source      string
	Categories  []string
}

// articleWire is the JSON representation of Article. PubDate round-trips as an
// RFC 3339 string when present and is omitted entirely otherwise, matching the
// artifact's "optional pub_date" field.
type articleWire struct {
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	PubDate     *string  `json:"pub_date,omitempty"`
	Author      string   `json:"author,omitempty"`
	Source      string   `json:"source"`
	Categories  []string `json:"categories"`
}

// MarshalJSON implements json.Marshaler.
func (a Article) MarshalJSON() ([]byte, error) {
	w := articleWire{
		Title:       a.Title,
		Link:        a.Link,
		Description: a.Description,
		Author:      a.Author,
		Source:      a.Source,
		Categories:  a.Categories,
	}
	if w.Categories == nil {
		w.Categories = []string{}
	}
	if a.PubDate != nil {
		s := a.PubDate.UTC().Format(time.RFC3339)
		w.PubDate = &s
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Article) UnmarshalJSON(data []byte) error {
	var w articleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.Title = w.Title
	a.Link = w.Link
	a.Description = w.Description
	a.Author = w.Author
	a.Source = w.Source
	a.Categories = w.Categories
	a.PubDate = nil
	if w.PubDate != nil && *w.PubDate != "" {
		if t, err := time.Parse(time.RFC3339, *w.PubDate); err == nil {
			a.PubDate = &t
		}
	}
	return nil
}

// Valid reports whether the article satisfies the data model's invariants:
// title and link non-empty.
func (a Article) Valid() bool {
	return a.Title != "" && a.Link != ""
}
