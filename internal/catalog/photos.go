package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a photo ID does not exist.
var ErrNotFound = errors.New("photo not found")

const photoColumns = `id, file_path, file_name, file_size, mod_time, format,
	content_hash, dhash, width, height, camera_make, camera_model, lens,
	date_taken, iso, f_number, focal_length, exposure_time, exposure_comp,
	gps_lat, gps_lng, preview_path, thumbnail_path, embedding,
	rating, picked, rejected, import_batch_id, created_at, updated_at`

func scanPhoto(row interface{ Scan(...any) error }) (*Photo, error) {
	var p Photo
	var embedding []byte
	err := row.Scan(
		&p.ID, &p.FilePath, &p.FileName, &p.FileSize, &p.ModTime, &p.Format,
		&p.ContentHash, &p.DHash, &p.Width, &p.Height, &p.CameraMake, &p.CameraModel, &p.Lens,
		&p.DateTaken, &p.ISO, &p.FNumber, &p.FocalLength, &p.ExposureTime, &p.ExposureComp,
		&p.GPSLat, &p.GPSLng, &p.PreviewPath, &p.ThumbnailPath, &embedding,
		&p.Rating, &p.Picked, &p.Rejected, &p.ImportBatchID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Embedding = decodeEmbedding(embedding)
	return &p, nil
}

// StatusByPath returns the stored import state for a file path, or
// nil if the path has never been imported.
func (c *Catalog) StatusByPath(ctx context.Context, filePath string) (*PhotoStatus, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("status_by_path", start, err) }()

	var s PhotoStatus
	err = c.db.QueryRowContext(ctx,
		"SELECT id, mod_time, file_size FROM photos WHERE file_path = ?", filePath,
	).Scan(&s.ID, &s.ModTime, &s.FileSize)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query photo status: %w", err)
	}
	return &s, nil
}

// UpsertPhoto writes a fully processed photo row. Re-imports of a
// changed file keep the existing row ID and cull state but replace
// everything derived from the file contents.
func (c *Catalog) UpsertPhoto(ctx context.Context, p *Photo) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_photo", start, err) }()

	now := time.Now().Unix()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO photos (
			id, file_path, file_name, file_size, mod_time, format,
			content_hash, dhash, width, height, camera_make, camera_model, lens,
			date_taken, iso, f_number, focal_length, exposure_time, exposure_comp,
			gps_lat, gps_lng, preview_path, thumbnail_path, embedding,
			rating, picked, rejected, import_batch_id, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_size = excluded.file_size,
			mod_time = excluded.mod_time,
			format = excluded.format,
			content_hash = excluded.content_hash,
			dhash = excluded.dhash,
			width = excluded.width,
			height = excluded.height,
			camera_make = excluded.camera_make,
			camera_model = excluded.camera_model,
			lens = excluded.lens,
			date_taken = excluded.date_taken,
			iso = excluded.iso,
			f_number = excluded.f_number,
			focal_length = excluded.focal_length,
			exposure_time = excluded.exposure_time,
			exposure_comp = excluded.exposure_comp,
			gps_lat = excluded.gps_lat,
			gps_lng = excluded.gps_lng,
			preview_path = excluded.preview_path,
			thumbnail_path = excluded.thumbnail_path,
			embedding = excluded.embedding,
			import_batch_id = excluded.import_batch_id,
			updated_at = excluded.updated_at`,
		p.ID, p.FilePath, p.FileName, p.FileSize, p.ModTime, p.Format,
		p.ContentHash, p.DHash, p.Width, p.Height, p.CameraMake, p.CameraModel, p.Lens,
		p.DateTaken, p.ISO, p.FNumber, p.FocalLength, p.ExposureTime, p.ExposureComp,
		p.GPSLat, p.GPSLng, p.PreviewPath, p.ThumbnailPath, encodeEmbedding(p.Embedding),
		p.Rating, p.Picked, p.Rejected, p.ImportBatchID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert photo %s: %w", p.FilePath, err)
	}
	return nil
}

// GetPhoto returns a photo with its tags, or ErrNotFound.
func (c *Catalog) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_photo", start, err) }()

	row := c.db.QueryRowContext(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE id = ?", id)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo %s: %w", id, err)
	}

	p.Tags, err = c.tagsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePhoto removes a photo row; tags cascade.
func (c *Catalog) DeletePhoto(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photo", start, err) }()

	res, err := c.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete photo %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRating sets the star rating (0..5) on a photo.
func (c *Catalog) SetRating(ctx context.Context, id string, rating int) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5, got %d", rating)
	}
	return c.updateCull(ctx, "set_rating", id, "rating = ?", rating)
}

// SetPicked flags a photo as picked. Picking clears any reject flag.
func (c *Catalog) SetPicked(ctx context.Context, id string, picked bool) error {
	if picked {
		return c.updateCull(ctx, "set_picked", id, "picked = 1, rejected = 0")
	}
	return c.updateCull(ctx, "set_picked", id, "picked = 0")
}

// SetRejected flags a photo as rejected. Rejecting clears any pick flag.
func (c *Catalog) SetRejected(ctx context.Context, id string, rejected bool) error {
	if rejected {
		return c.updateCull(ctx, "set_rejected", id, "rejected = 1, picked = 0")
	}
	return c.updateCull(ctx, "set_rejected", id, "rejected = 0")
}

func (c *Catalog) updateCull(ctx context.Context, op, id, set string, args ...any) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	args = append(args, time.Now().Unix(), id)
	res, err := c.db.ExecContext(ctx,
		"UPDATE photos SET "+set+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update photo %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchUpdateCull applies one cull change to many photos in a single
// transaction. Returns the number of rows updated.
func (c *Catalog) BatchUpdateCull(ctx context.Context, update CullUpdate) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("batch_cull", start, err) }()

	if len(update.PhotoIDs) == 0 {
		return 0, nil
	}

	var sets []string
	var args []any
	if update.Rating != nil {
		if *update.Rating < 0 || *update.Rating > 5 {
			err = fmt.Errorf("rating must be between 0 and 5, got %d", *update.Rating)
			return 0, err
		}
		sets = append(sets, "rating = ?")
		args = append(args, *update.Rating)
	}
	if update.Picked != nil {
		sets = append(sets, "picked = ?")
		args = append(args, *update.Picked)
		if *update.Picked {
			sets = append(sets, "rejected = 0")
		}
	}
	if update.Rejected != nil {
		sets = append(sets, "rejected = ?")
		args = append(args, *update.Rejected)
		if *update.Rejected {
			sets = append(sets, "picked = 0")
		}
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().Unix())

	placeholders := strings.Repeat("?,", len(update.PhotoIDs))
	placeholders = placeholders[:len(placeholders)-1]
	for _, id := range update.PhotoIDs {
		args = append(args, id)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"UPDATE photos SET "+strings.Join(sets, ", ")+" WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to batch update photos: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch update: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListHashes returns every photo that has a perceptual hash.
func (c *Catalog) ListHashes(ctx context.Context) ([]HashEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_hashes", start, err) }()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, dhash FROM photos WHERE dhash IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list hashes: %w", err)
	}
	defer rows.Close()

	var entries []HashEntry
	for rows.Next() {
		var id string
		var hash int64
		if err = rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		entries = append(entries, HashEntry{ID: id, Hash: uint64(hash)})
	}
	err = rows.Err()
	return entries, err
}

// ListEmbeddings returns every photo that has an embedding vector.
func (c *Catalog) ListEmbeddings(ctx context.Context) ([]EmbeddingEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_embeddings", start, err) }()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, embedding FROM photos WHERE embedding IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var entries []EmbeddingEntry
	for rows.Next() {
		var id string
		var blob []byte
		if err = rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		if vec := decodeEmbedding(blob); vec != nil {
			entries = append(entries, EmbeddingEntry{ID: id, Vector: vec})
		}
	}
	err = rows.Err()
	return entries, err
}

// CountPhotos returns the total number of photos in the catalog.
func (c *Catalog) CountPhotos(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos").Scan(&count)
	return count, err
}
