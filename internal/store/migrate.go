package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// migrations holds the Postgres schema. Statements are idempotent so the
// runner can execute on every startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		active_node_id TEXT,
		assistant_id TEXT NOT NULL DEFAULT '',
		assistant_meta JSONB,
		prompt TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		sort_order BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		topic_id TEXT NOT NULL,
		parent_id TEXT,
		role TEXT NOT NULL DEFAULT '',
		data JSONB,
		status TEXT NOT NULL DEFAULT 'pending',
		siblings_group_id BIGINT DEFAULT 0,
		assistant_id TEXT NOT NULL DEFAULT '',
		model_id TEXT NOT NULL DEFAULT '',
		model_meta JSONB,
		trace_id TEXT NOT NULL DEFAULT '',
		stats JSONB,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_topics_updated ON topics(updated_at)`,
}

// RunMigrations applies the Postgres schema over a short-lived connection.
func RunMigrations(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, stmt := range migrations {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
