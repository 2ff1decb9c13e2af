package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Таблица workspaces создается сервисом рабочих пространств, здесь только свои таблицы.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_chat_messages (
		id           BIGSERIAL PRIMARY KEY,
		workspace_id VARCHAR(36) NOT NULL,
		user_id      BIGINT NOT NULL,
		username     VARCHAR(50) NOT NULL,
		message      TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_chat_messages_workspace
		ON user_chat_messages (workspace_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id            BIGSERIAL PRIMARY KEY,
		event_time    TIMESTAMPTZ NOT NULL DEFAULT now(),
		actor_user_id BIGINT NOT NULL,
		actor_role    VARCHAR(20) NOT NULL,
		room_id       VARCHAR(36) NOT NULL,
		event_type    VARCHAR(50) NOT NULL,
		payload       JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
}

func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
