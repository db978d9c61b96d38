package database

import (
	"context"
	"fmt"
)

// schema is the complete link store layout. Idempotent: safe to apply on
// every startup.
const schema = `
CREATE TABLE IF NOT EXISTS link_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Bootstrap applies the store schema. Called once at startup, after Open
// and before any reads or writes.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema application fails
func (db *DB) Bootstrap(ctx context.Context) error {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying store schema: %w", err)
	}
	return nil
}
