// Package catalog is the persistence layer: a single SQLite database
// holding photo rows, tags, and embedding vectors. All writes go
// through one *sql.DB with WAL journaling; the busy timeout covers the
// single-writer persist stage racing interactive cull updates.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-catalog/internal/logging"
	"photo-catalog/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Catalog manages all database operations for the photo library.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the catalog database at dbPath. The parent
// directory must already exist and be writable.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// WAL mode with a busy timeout so interactive reads and writes do
	// not fail while the persist stage holds the write lock.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{db: db, dbPath: dbPath}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		format TEXT NOT NULL,
		content_hash TEXT,
		dhash INTEGER,
		width INTEGER,
		height INTEGER,
		camera_make TEXT,
		camera_model TEXT,
		lens TEXT,
		date_taken INTEGER,
		iso INTEGER,
		f_number REAL,
		focal_length REAL,
		exposure_time REAL,
		exposure_comp REAL,
		gps_lat REAL,
		gps_lng REAL,
		preview_path TEXT,
		thumbnail_path TEXT,
		embedding BLOB,
		rating INTEGER NOT NULL DEFAULT 0,
		picked INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		import_batch_id TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_photos_file_path ON photos(file_path);
	CREATE INDEX IF NOT EXISTS idx_photos_date_taken ON photos(date_taken);
	CREATE INDEX IF NOT EXISTS idx_photos_rating ON photos(rating);
	CREATE INDEX IF NOT EXISTS idx_photos_batch ON photos(import_batch_id);
	CREATE INDEX IF NOT EXISTS idx_photos_camera ON photos(camera_make, camera_model);

	CREATE TABLE IF NOT EXISTS tags (
		photo_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		source TEXT NOT NULL DEFAULT 'auto',
		PRIMARY KEY (photo_id, tag, source),
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

	CREATE TABLE IF NOT EXISTS import_batches (
		id TEXT PRIMARY KEY,
		source_dir TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		discovered INTEGER NOT NULL DEFAULT 0,
		imported INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);
	`

	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := c.db.ExecContext(execCtx, schema); err != nil {
		return err
	}

	// Foreign keys are off by default in sqlite3; tags cascade depends
	// on them.
	_, err := c.db.ExecContext(execCtx, "PRAGMA foreign_keys = ON")
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.dbPath
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
