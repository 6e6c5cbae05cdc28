// Package postgres persists audit records in PostgreSQL, for runs whose
// trail is shared across machines or consumed by reporting dashboards.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/ferret/internal/audit"
)

var _ audit.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
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
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_enrich_audit_run ON enrich_audit (run_id, row_index);
`

// New creates a Postgres-backed audit.Backend.
func New(ctx context.Context, dsn string) (audit.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *audit.Record) error {
	query := `
	INSERT INTO enrich_audit (
		id, run_id, row_index, article_code, supplier_ref, provider_raw,
		brand_detected, chosen_host, search_pass, source_page,
		found_image, found_pdf, status, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := b.pool.Exec(ctx, query,
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

func (b *postgresBackend) Query(ctx context.Context, filter audit.Filter) ([]*audit.Record, error) {
	query := `SELECT id, run_id, row_index, article_code, supplier_ref, provider_raw,
		brand_detected, chosen_host, search_pass, source_page,
		found_image, found_pdf, status, created_at
	FROM enrich_audit WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, paramCount)
		args = append(args, filter.RunID)
		paramCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, paramCount)
		args = append(args, filter.Status)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY run_id, row_index`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
