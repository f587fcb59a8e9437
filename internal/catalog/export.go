package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportCSV streams photos matching the filters as CSV. Paging in the
// filters is ignored; the export walks the full result set in chunks.
func (c *Catalog) ExportCSV(ctx context.Context, w io.Writer, f QueryFilters) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("export_csv", start, err) }()

	cw := csv.NewWriter(w)
	header := []string{
		"id", "file_path", "file_name", "format", "date_taken",
		"camera_make", "camera_model", "lens", "iso", "f_number",
		"focal_length", "exposure_time", "rating", "picked", "rejected",
		"width", "height", "content_hash",
	}
	if err = cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	const chunk = 500
	f.Offset = 0
	f.Limit = chunk
	for {
		photos, queryErr := c.QueryPhotos(ctx, f)
		if queryErr != nil {
			err = queryErr
			return err
		}
		for _, p := range photos {
			if err = cw.Write(csvRow(p)); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		if len(photos) < chunk {
			break
		}
		f.Offset += chunk
	}

	cw.Flush()
	err = cw.Error()
	return err
}

func csvRow(p *Photo) []string {
	return []string{
		p.ID,
		p.FilePath,
		p.FileName,
		string(p.Format),
		fmtInt64Ptr(p.DateTaken),
		fmtStrPtr(p.CameraMake),
		fmtStrPtr(p.CameraModel),
		fmtStrPtr(p.Lens),
		fmtInt64Ptr(p.ISO),
		fmtFloatPtr(p.FNumber),
		fmtFloatPtr(p.FocalLength),
		fmtFloatPtr(p.ExposureTime),
		strconv.Itoa(p.Rating),
		strconv.FormatBool(p.Picked),
		strconv.FormatBool(p.Rejected),
		fmtInt64Ptr(p.Width),
		fmtInt64Ptr(p.Height),
		fmtStrPtr(p.ContentHash),
	}
}

func fmtStrPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func fmtFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
