package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ImportBatch records one run of the import pipeline.
type ImportBatch struct {
	ID         string `json:"id"`
	SourceDir  string `json:"sourceDir"`
	StartedAt  int64  `json:"startedAt"`
	FinishedAt *int64 `json:"finishedAt,omitempty"`
	Discovered int    `json:"discovered"`
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Status     string `json:"status"`
}

// Import batch terminal states.
const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
	BatchFailed    = "failed"
)

// BeginBatch records the start of an import run.
func (c *Catalog) BeginBatch(ctx context.Context, id, sourceDir string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("begin_batch", start, err) }()

	_, err = c.db.ExecContext(ctx,
		"INSERT INTO import_batches (id, source_dir, started_at, status) VALUES (?, ?, ?, ?)",
		id, sourceDir, time.Now().Unix(), BatchRunning)
	if err != nil {
		return fmt.Errorf("failed to record import batch: %w", err)
	}
	return nil
}

// FinishBatch records the outcome of an import run.
func (c *Catalog) FinishBatch(ctx context.Context, id, status string, discovered, imported, skipped, failed int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("finish_batch", start, err) }()

	_, err = c.db.ExecContext(ctx, `
		UPDATE import_batches
		SET finished_at = ?, status = ?, discovered = ?, imported = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		time.Now().Unix(), status, discovered, imported, skipped, failed, id)
	if err != nil {
		return fmt.Errorf("failed to finish import batch: %w", err)
	}
	return nil
}

// LastBatchID returns the most recently started import batch, or ""
// when no import has ever run.
func (c *Catalog) LastBatchID(ctx context.Context) (string, error) {
	var id string
	err := c.db.QueryRowContext(ctx,
		"SELECT id FROM import_batches ORDER BY started_at DESC, id DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}
