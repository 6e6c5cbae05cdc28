// Package csvbackend persists audit records to an append-only CSV file,
// the default audit sink for ad-hoc runs.
package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/ferret/internal/audit"
)

var _ audit.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"run_id",
	"row_index",
	"article_code",
	"supplier_ref",
	"provider_raw",
	"brand_detected",
	"chosen_host",
	"search_pass",
	"source_page",
	"found_image",
	"found_pdf",
	"status",
	"created_at",
}

// New creates a CSV-backed audit.Backend. The file is created with a
// header row when empty and appended to otherwise, so interrupted runs
// resume into the same trail.
func New(filePath string) (audit.Backend, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit csv: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit csv: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write audit csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush audit csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *audit.Record) error {
	record := []string{
		rec.ID,
		rec.RunID,
		strconv.Itoa(rec.RowIndex),
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
		rec.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek audit csv: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit record: %w", err)
	}

	return nil
}

// Query reads the whole file and filters in memory. Records come back in
// insertion order, which for this backend is also row order within a run.
func (b *csvBackend) Query(ctx context.Context, filter audit.Filter) ([]*audit.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek audit csv: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return []*audit.Record{}, nil
		}
		return nil, fmt.Errorf("read audit csv header: %w", err)
	}

	var filtered []*audit.Record
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read audit record: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		rowIndex, _ := strconv.Atoi(record[2])
		createdAt, _ := time.Parse(time.RFC3339Nano, record[13])

		rec := &audit.Record{
			ID:            record[0],
			RunID:         record[1],
			RowIndex:      rowIndex,
			ArticleCode:   record[3],
			SupplierRef:   record[4],
			ProviderRaw:   record[5],
			BrandDetected: record[6],
			ChosenHost:    record[7],
			SearchPass:    record[8],
			SourcePage:    record[9],
			FoundImage:    record[10],
			FoundPDF:      record[11],
			Status:        record[12],
			CreatedAt:     createdAt,
		}

		if filter.RunID != "" && rec.RunID != filter.RunID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Since != nil && rec.CreatedAt.Before(*filter.Since) {
			continue
		}

		filtered = append(filtered, rec)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(filtered) {
			return []*audit.Record{}, nil
		}
		filtered = filtered[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}

	return filtered, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
