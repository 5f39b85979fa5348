package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ginIndexStatements creates the full-text GIN indexes backing the
// transcript and OCR find-within-video queries (C12). Expressed here rather
// than as a plain migration step so the `tsvector` expression stays close
// to the query code that depends on it.
var ginIndexStatements = []string{
	`CREATE INDEX IF NOT EXISTS transcript_fts_tsv_idx ON transcript_fts USING GIN (to_tsvector('english', text))`,
	`CREATE INDEX IF NOT EXISTS ocr_fts_tsv_idx ON ocr_fts USING GIN (to_tsvector('english', text))`,
}

// CreateGINIndexes creates the full-text search indexes used by C12's
// find-within-video operation. Safe to call repeatedly (IF NOT EXISTS).
func CreateGINIndexes(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range ginIndexStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	return nil
}
