package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReplaceAutoTags swaps the machine-generated tags for a photo with a
// new set in one transaction. Manual tags are untouched.
func (c *Catalog) ReplaceAutoTags(ctx context.Context, photoID string, tags []Tag) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("replace_auto_tags", start, err) }()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM tags WHERE photo_id = ? AND source = ?", photoID, TagSourceAuto); err != nil {
		return fmt.Errorf("failed to clear auto tags: %w", err)
	}

	for _, t := range tags {
		if _, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO tags (photo_id, tag, confidence, source) VALUES (?, ?, ?, ?)",
			photoID, strings.ToLower(t.Tag), t.Confidence, TagSourceAuto); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", t.Tag, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag update: %w", err)
	}
	return nil
}

// AddManualTag attaches a user tag to a photo.
func (c *Catalog) AddManualTag(ctx context.Context, photoID, tag string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_manual_tag", start, err) }()

	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		err = fmt.Errorf("tag must not be empty")
		return err
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tags (photo_id, tag, confidence, source) VALUES (?, ?, 1.0, ?)",
		photoID, tag, TagSourceManual)
	if err != nil {
		return fmt.Errorf("failed to add tag %q: %w", tag, err)
	}
	return nil
}

// RemoveManualTag removes a user tag from a photo.
func (c *Catalog) RemoveManualTag(ctx context.Context, photoID, tag string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_manual_tag", start, err) }()

	_, err = c.db.ExecContext(ctx,
		"DELETE FROM tags WHERE photo_id = ? AND tag = ? AND source = ?",
		photoID, strings.ToLower(tag), TagSourceManual)
	if err != nil {
		return fmt.Errorf("failed to remove tag %q: %w", tag, err)
	}
	return nil
}

// ListTags returns every distinct tag with its photo count.
func (c *Catalog) ListTags(ctx context.Context) (map[string]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tags", start, err) }()

	rows, err := c.db.QueryContext(ctx,
		"SELECT tag, COUNT(DISTINCT photo_id) FROM tags GROUP BY tag ORDER BY tag")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err = rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		counts[tag] = n
	}
	err = rows.Err()
	return counts, err
}

func (c *Catalog) tagsFor(ctx context.Context, photoID string) ([]Tag, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT tag, confidence, source FROM tags WHERE photo_id = ? ORDER BY confidence DESC, tag",
		photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for %s: %w", photoID, err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Tag, &t.Confidence, &t.Source); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
