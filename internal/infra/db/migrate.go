package db

import (
	"database/sql"
)

// MigrateUp creates the conversations/messages schema. It is safe to call
// repeatedly: every statement uses IF NOT EXISTS.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS conversations (
    id         BIGSERIAL PRIMARY KEY,
    visitor_id TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    type       VARCHAR(20) NOT NULL DEFAULT 'chat',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS messages (
    id              BIGSERIAL PRIMARY KEY,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role            VARCHAR(20) NOT NULL,
    content         TEXT NOT NULL,
    thinking_mode   BOOLEAN NOT NULL DEFAULT FALSE,
    timestamp       TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// List() を visitor_id で絞り込み、updated_at DESC で並べるため
		`CREATE INDEX IF NOT EXISTS idx_conversations_visitor_updated ON conversations(visitor_id, updated_at DESC)`,
		// RecentMessages() を conversation_id + timestamp で取得するため
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_timestamp ON messages(conversation_id, timestamp)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// conversations.type 制約追加
	// PostgreSQL特有の制約構文のため、エラーを無視(既に存在する場合)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_conversation_type'
    ) THEN
        ALTER TABLE conversations ADD CONSTRAINT chk_conversation_type
        CHECK (type IN ('chat', 'agent'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown drops the conversations/messages schema. Use with caution:
// this deletes all conversation data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_messages_conversation_timestamp`,
		`DROP INDEX IF EXISTS idx_conversations_visitor_updated`,
		`DROP TABLE IF EXISTS messages CASCADE`,
		`DROP TABLE IF EXISTS conversations CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
