package repositories

import (
	"context"
	"fmt"
)

// seq keeps natural insertion order for FIFO selection.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS render_queue (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	prompt_id  TEXT NOT NULL,
	number     INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'Pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS render_queue_status_seq_idx ON render_queue (status, seq);
CREATE INDEX IF NOT EXISTS render_queue_prompt_id_idx ON render_queue (prompt_id);

CREATE TABLE IF NOT EXISTS portraits (
	id               TEXT PRIMARY KEY,
	image            TEXT NOT NULL,
	sex              TEXT NOT NULL,
	type_of_function TEXT NOT NULL,
	crop             JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS portraits_sex_idx ON portraits (sex);
`

// EnsureSchema creates the booth tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
