package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-sqlite3"

	"photo-catalog/internal/dupes"
	"photo-catalog/internal/exiftool"
	"photo-catalog/internal/filesystem"
	"photo-catalog/internal/logging"
	"photo-catalog/internal/media"
	"photo-catalog/internal/metrics"
	"photo-catalog/internal/phototypes"
	"photo-catalog/internal/similarity"
	"photo-catalog/internal/vision"
)

// minLabelConfidence drops noise labels before they become tags.
const minLabelConfidence = 0.2

type stageFunc func(ctx context.Context, it *workItem) error

// runStage drains in with a pool of workers, applying fn to each item
// and forwarding successes to out. Failed items are logged, counted,
// and dropped. Cancellation is checked before every item acquisition,
// so once a cancel is observed no queued item is picked up; items
// already inside fn run to completion. next names the stage whose
// queue out feeds, for pending accounting; pass "" when out is not a
// stage queue. The function returns once in is closed and drained, or
// once the context is cancelled; it never closes out.
func (j *job) runStage(ctx context.Context, name, next string, workerCount int, in <-chan *workItem, out chan<- *workItem, fn stageFunc) {
	metrics.StageWorkers.WithLabelValues(name).Set(float64(workerCount))

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				var it *workItem
				var ok bool
				select {
				case it, ok = <-in:
					if !ok {
						return
					}
				case <-ctx.Done():
					return
				}

				j.tracker.stageStarted(name)
				start := time.Now()
				err := fn(ctx, it)
				metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logging.Warn("Stage %s failed for %s: %v", name, it.path, err)
					metrics.StageItemsFailed.WithLabelValues(name).Inc()
					j.tracker.stageFailed(name)
					continue
				}

				metrics.StageItemsCompleted.WithLabelValues(name).Inc()
				j.tracker.stageCompleted(name)

				if out == nil {
					continue
				}
				select {
				case out <- it:
					if next != "" {
						j.tracker.stageQueued(next)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
}

// extract reads metadata and, for raw files, pulls out the embedded
// preview that later stages decode.
func (j *job) extract(ctx context.Context, it *workItem) error {
	meta, err := j.exif.ReadMetadata(it.path)
	if err != nil {
		// Metadata trouble is not fatal; pixels are.
		logging.Warn("Metadata read failed for %s: %v", it.path, err)
		meta = &exiftool.Metadata{}
	}
	it.meta = meta
	it.decodePath = it.path

	if !phototypes.IsDecodable(it.path) {
		scratch := j.derivs.ScratchPath(it.photoID)
		ok, err := j.exif.ExtractPreview(it.path, scratch)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("raw file has no embedded preview: %s", it.path)
		}
		it.decodePath = scratch
	}
	return ctx.Err()
}

// thumbnail builds the preview and thumbnail derivatives.
func (j *job) thumbnail(ctx context.Context, it *workItem) error {
	preview, err := j.derivs.BuildPreview(it.decodePath, it.photoID)
	if err != nil {
		return err
	}
	it.previewPath = preview

	thumb, err := j.derivs.BuildThumbnail(preview, it.photoID)
	if err != nil {
		return err
	}
	it.thumbnailPath = thumb

	// The raw scratch file is only needed to build the preview.
	if it.decodePath != it.path {
		os.Remove(it.decodePath)
		it.decodePath = it.path
	}

	// Fall back to decoded dimensions when metadata had none.
	if it.meta != nil && (it.meta.Width == nil || it.meta.Height == nil) {
		if w, h, dimErr := media.Dimensions(preview); dimErr == nil {
			w64, h64 := int64(w), int64(h)
			it.meta.Width = &w64
			it.meta.Height = &h64
		}
	}
	return ctx.Err()
}

// hash computes the content hash of the original bytes and the
// perceptual hash of the thumbnail. The decoded thumbnail stays on
// the item for the tag and embed branches.
func (j *job) hash(ctx context.Context, it *workItem) error {
	sum, err := hashFile(it.path)
	if err != nil {
		return err
	}
	it.contentHash = sum

	img, err := media.LoadScaled(it.thumbnailPath, media.ThumbnailLongEdge, media.ThumbnailLongEdge)
	if err != nil {
		return err
	}
	it.thumbImg = img
	it.dhash = dupes.ComputeDHash(img)
	return ctx.Err()
}

// tag runs the vision engine over the thumbnail. The stage runs with
// a single worker because engines may hold one inference session.
func (j *job) tag(ctx context.Context, it *workItem) error {
	labels, err := j.engine.Classify(ctx, it.thumbImg)
	if err != nil {
		return err
	}
	it.labels = vision.FilterLabels(labels, minLabelConfidence)

	detections, err := j.engine.Detect(ctx, it.thumbImg)
	if err != nil {
		return err
	}
	it.portrait = j.portraitRule.Matches(detections)
	return nil
}

// embed computes the similarity embedding from the thumbnail.
func (j *job) embed(ctx context.Context, it *workItem) error {
	it.embedding = similarity.ComputeEmbedding(it.thumbImg)
	return ctx.Err()
}

// persistTimeout bounds the writes for one item once they have begun.
const persistTimeout = 30 * time.Second

// persist writes the finished item to the catalog. The writes run
// under their own context so a job cancel observed at item acquisition
// can never tear an item's row and tags apart mid-write; an item that
// reaches this stage is stored completely or not at all counted.
func (j *job) persist(_ context.Context, it *workItem) error {
	it.thumbImg = nil

	writeCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := j.catalog.UpsertPhoto(writeCtx, it.record(j.batchID)); err != nil {
		return j.classifyStoreError(err)
	}
	if err := j.catalog.ReplaceAutoTags(writeCtx, it.photoID, it.autoTags()); err != nil {
		return j.classifyStoreError(err)
	}
	j.tracker.filePersisted()
	return nil
}

// classifyStoreError separates bad-row errors, which drop one item,
// from store-level failures, which make every further write pointless.
// A store-level failure cancels the whole job and is surfaced once on
// the final snapshot.
func (j *job) classifyStoreError(err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		return err
	}
	j.fail(err)
	return err
}

// hashFile streams a file through xxhash and returns the hex digest.
// Opens retry on transient errors since source trees often sit on
// network mounts.
func hashFile(path string) (string, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
