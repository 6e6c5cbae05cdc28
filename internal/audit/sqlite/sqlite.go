// Package sqlite persists audit records in a local SQLite database, the
// sink of choice for long resumable batch runs on one machine.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/ferret/internal/audit"
	_ "modernc.org/sqlite"
)

var _ audit.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS enrich_audit (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	row_index INTEGER NOT NULL,
	article_code TEXT,
	supplier_ref TEXT,
	provider_raw TEXT,
	brand_detected TEXT,
	chosen_host TEXT,
	search_pass TEXT,
	source_page TEXT,
	found_image TEXT,
	found_pdf TEXT,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_enrich_audit_run ON enrich_audit (run_id, row_index);
`

// New creates a SQLite-backed audit.Backend.
func New(dsn string) (audit.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *audit.Record) error {
	query := `
	INSERT INTO enrich_audit (
		id, run_id, row_index, article_code, supplier_ref, provider_raw,
		brand_detected, chosen_host, search_pass, source_page,
		found_image, found_pdf, status, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		rec.ID,
		rec.RunID,
		rec.RowIndex,
		rec.ArticleCode,
		rec.SupplierRef,
		rec.ProviderRaw,
		rec.BrandDetected,
		rec.ChosenHost,
		rec.SearchPass,
		rec.SourcePage,
		rec.FoundImage,
		rec.FoundPDF,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter audit.Filter) ([]*audit.Record, error) {
	query := `SELECT id, run_id, row_index, article_code, supplier_ref, provider_raw,
		brand_detected, chosen_host, search_pass, source_page,
		found_image, found_pdf, status, created_at
	FROM enrich_audit WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY run_id, row_index`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var results []*audit.Record
	for rows.Next() {
		var r audit.Record
		err := rows.Scan(
			&r.ID, &r.RunID, &r.RowIndex, &r.ArticleCode, &r.SupplierRef, &r.ProviderRaw,
			&r.BrandDetected, &r.ChosenHost, &r.SearchPass, &r.SourcePage,
			&r.FoundImage, &r.FoundPDF, &r.Status, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
