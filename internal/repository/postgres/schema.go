package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          SERIAL PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	age         INTEGER,
	city        TEXT,
	school      TEXT,
	college     TEXT,
	workplace   TEXT,
	interests   TEXT[] NOT NULL DEFAULT '{}',
	latitude    DOUBLE PRECISION,
	longitude   DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_users_location ON users (latitude, longitude)
	WHERE latitude IS NOT NULL AND longitude IS NOT NULL;
`

// EnsureSchema creates the users table and its location index when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
