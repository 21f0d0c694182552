package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the chat schema used by the pgx repositories.
// Every statement is idempotent so EnsureSchema can run on each start.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS chat`,
	`CREATE TABLE IF NOT EXISTS chat.app_user (
		id              uuid PRIMARY KEY,
		name            varchar(100),
		email           varchar(320) UNIQUE,
		image           text,
		role            varchar(16) NOT NULL DEFAULT 'MEMBER',
		hashed_password text,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat.conversation (
		id              uuid PRIMARY KEY,
		created_at      timestamptz NOT NULL DEFAULT now(),
		last_message_at timestamptz NOT NULL DEFAULT now(),
		name            varchar(100),
		is_group        boolean NOT NULL DEFAULT false,
		direct_key      varchar(80) UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS chat.participant (
		conversation_id uuid NOT NULL REFERENCES chat.conversation(id) ON DELETE CASCADE,
		user_id         uuid NOT NULL REFERENCES chat.app_user(id) ON DELETE CASCADE,
		joined_at       timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (conversation_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS participant_user_idx ON chat.participant (user_id)`,
	`CREATE TABLE IF NOT EXISTS chat.message (
		id              uuid PRIMARY KEY,
		seq             bigserial UNIQUE,
		conversation_id uuid NOT NULL REFERENCES chat.conversation(id) ON DELETE CASCADE,
		sender_id       uuid NOT NULL REFERENCES chat.app_user(id) ON DELETE CASCADE,
		body            varchar(2000),
		image           text,
		created_at      timestamptz NOT NULL DEFAULT now(),
		CHECK (body IS NOT NULL OR image IS NOT NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS message_conversation_order_idx ON chat.message (conversation_id, created_at, seq)`,
	`CREATE TABLE IF NOT EXISTS chat.seen_receipt (
		message_id uuid NOT NULL REFERENCES chat.message(id) ON DELETE CASCADE,
		user_id    uuid NOT NULL REFERENCES chat.app_user(id) ON DELETE CASCADE,
		created_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id)
	)`,
}

// EnsureSchema creates the chat schema and tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: schema step %d: %w", i, err)
		}
	}
	return nil
}
