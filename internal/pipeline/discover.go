package pipeline

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"photo-catalog/internal/logging"
	"photo-catalog/internal/metrics"
	"photo-catalog/internal/phototypes"
)

// discover walks the source tree and feeds importable files into the
// extract queue. Files whose path, size, and mtime match an existing
// catalog row are counted as skipped and never enter the pipeline.
// The walk stops early when the job context is cancelled.
func (j *job) discover(ctx context.Context, out chan<- *workItem) error {
	defer close(out)

	err := filepath.WalkDir(j.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			logging.Warn("Skipping unreadable path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// Hidden directories hold sidecar caches, not photos.
			if name := d.Name(); strings.HasPrefix(name, ".") && path != j.sourceDir {
				return fs.SkipDir
			}
			return nil
		}
		if !phototypes.IsImportable(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Skipping %s: %v", path, err)
			return nil
		}

		j.tracker.fileDiscovered()
		metrics.FilesDiscovered.Inc()

		status, err := j.catalog.StatusByPath(ctx, path)
		if err != nil {
			logging.Warn("Status lookup failed for %s: %v", path, err)
		} else if status != nil && status.Unchanged(info.ModTime().Unix(), info.Size()) {
			j.tracker.fileSkipped()
			return nil
		}

		item := &workItem{
			photoID:  uuid.NewString(),
			path:     path,
			format:   phototypes.GetFormat(filepath.Ext(path)),
			fileSize: info.Size(),
			modTime:  info.ModTime().Unix(),
		}
		if status != nil {
			// Changed file: keep the existing row identity so cull
			// state and derivative paths stay attached.
			item.photoID = status.ID
		}

		select {
		case out <- item:
			j.tracker.stageQueued(StageExtract)
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
