package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photo-catalog/internal/phototypes"
)

const (
	defaultQueryLimit = 200
	maxQueryLimit     = 1000
)

// QueryPhotos lists photos matching the filters, sorted and paged.
// Tags are not loaded for listing; use GetPhoto for the full record.
func (c *Catalog) QueryPhotos(ctx context.Context, f QueryFilters) ([]*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_photos", start, err) }()

	where, args, err := c.buildWhere(ctx, f)
	if err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + photoColumns + " FROM photos" + where +
		" ORDER BY " + orderClause(f.Sort, f.Order) +
		" LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	photos := []*Photo{}
	for rows.Next() {
		p, scanErr := scanPhoto(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		photos = append(photos, p)
	}
	err = rows.Err()
	return photos, err
}

// CountMatching returns the number of photos matching the filters,
// ignoring paging.
func (c *Catalog) CountMatching(ctx context.Context, f QueryFilters) (int, error) {
	where, args, err := c.buildWhere(ctx, f)
	if err != nil {
		return 0, err
	}
	var count int
	err = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos"+where, args...).Scan(&count)
	return count, err
}

func (c *Catalog) buildWhere(ctx context.Context, f QueryFilters) (string, []any, error) {
	var conds []string
	var args []any

	switch f.View {
	case ViewUnsorted:
		conds = append(conds, "rating = 0 AND picked = 0 AND rejected = 0")
	case ViewPicks:
		conds = append(conds, "picked = 1")
	case ViewRejects:
		conds = append(conds, "rejected = 1")
	case ViewLastImport:
		batchID, err := c.LastBatchID(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve last import: %w", err)
		}
		if batchID == "" {
			// No import has run; match nothing.
			conds = append(conds, "1 = 0")
		} else {
			conds = append(conds, "import_batch_id = ?")
			args = append(args, batchID)
		}
	case "":
		// all photos
	default:
		return "", nil, fmt.Errorf("unknown view %q", f.View)
	}

	if f.Search != "" {
		conds = append(conds, "file_name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}
	if f.CameraMake != "" {
		conds = append(conds, "camera_make = ? COLLATE NOCASE")
		args = append(args, f.CameraMake)
	}
	if f.CameraModel != "" {
		conds = append(conds, "camera_model = ? COLLATE NOCASE")
		args = append(args, f.CameraModel)
	}
	if f.Lens != "" {
		conds = append(conds, "lens = ? COLLATE NOCASE")
		args = append(args, f.Lens)
	}
	if f.Tag != "" {
		conds = append(conds, "id IN (SELECT photo_id FROM tags WHERE tag = ?)")
		args = append(args, strings.ToLower(f.Tag))
	}
	if f.MinRating > 0 {
		conds = append(conds, "rating >= ?")
		args = append(args, f.MinRating)
	}
	if f.ISOMin != nil {
		conds = append(conds, "iso >= ?")
		args = append(args, *f.ISOMin)
	}
	if f.ISOMax != nil {
		conds = append(conds, "iso <= ?")
		args = append(args, *f.ISOMax)
	}
	if f.HasGPS != nil {
		if *f.HasGPS {
			conds = append(conds, "gps_lat IS NOT NULL AND gps_lng IS NOT NULL")
		} else {
			conds = append(conds, "(gps_lat IS NULL OR gps_lng IS NULL)")
		}
	}
	if f.DateFrom != nil {
		conds = append(conds, "date_taken >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		conds = append(conds, "date_taken <= ?")
		args = append(args, *f.DateTo)
	}
	if f.PathPrefix != "" {
		conds = append(conds, "file_path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(f.PathPrefix)+"%")
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// orderClause maps validated sort inputs to SQL. Only known column
// names reach the query string.
func orderClause(field phototypes.SortField, order phototypes.SortOrder) string {
	col := "date_taken"
	switch field {
	case phototypes.SortByFileName:
		col = "file_name COLLATE NOCASE"
	case phototypes.SortByRating:
		col = "rating"
	case phototypes.SortByModified:
		col = "updated_at"
	case phototypes.SortByImported:
		col = "created_at"
	}
	dir := "DESC"
	if order == phototypes.SortAsc {
		dir = "ASC"
	}
	// Secondary sort keeps paging stable for equal keys.
	return fmt.Sprintf("%s %s, id %s", col, dir, dir)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SmartViewCounts returns the photo count behind each smart view.
func (c *Catalog) SmartViewCounts(ctx context.Context) (map[SmartView]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("smart_view_counts", start, err) }()

	counts := make(map[SmartView]int, 4)
	for _, view := range []SmartView{ViewUnsorted, ViewPicks, ViewRejects, ViewLastImport} {
		n, countErr := c.CountMatching(ctx, QueryFilters{View: view})
		if countErr != nil {
			err = countErr
			return nil, err
		}
		counts[view] = n
	}
	return counts, nil
}
