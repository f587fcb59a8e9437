// Package pipeline runs the photo import: a staged, bounded pipeline
// from directory discovery through metadata extraction, derivative
// generation, hashing, vision analysis, and persistence. One import
// runs at a time; progress is observable while it runs and the whole
// job can be cancelled.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/exiftool"
	"photo-catalog/internal/filesystem"
	"photo-catalog/internal/logging"
	"photo-catalog/internal/media"
	"photo-catalog/internal/metrics"
	"photo-catalog/internal/vision"
	"photo-catalog/internal/workers"
)

// Job states.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

// ErrAlreadyRunning is returned when an import is requested while one
// is in flight.
var ErrAlreadyRunning = errors.New("an import is already running")

// ErrNoActiveJob is returned by operations that need a running import.
var ErrNoActiveJob = errors.New("no import is running")

// Manager owns the single import slot.
type Manager struct {
	catalog *catalog.Catalog
	exif    *exiftool.Client
	derivs  *media.DerivativeStore
	engine  vision.Engine

	mu      sync.Mutex
	current *job
	last    *Snapshot
}

// NewManager wires the import pipeline's dependencies.
func NewManager(cat *catalog.Catalog, exif *exiftool.Client, derivs *media.DerivativeStore, engine vision.Engine) *Manager {
	return &Manager{catalog: cat, exif: exif, derivs: derivs, engine: engine}
}

// job is one import run.
type job struct {
	batchID   string
	sourceDir string

	catalog      *catalog.Catalog
	exif         *exiftool.Client
	derivs       *media.DerivativeStore
	engine       vision.Engine
	portraitRule vision.PortraitRule

	tracker *tracker
	cancel  context.CancelFunc

	// job-fatal failure, set at most once; read after the stage
	// goroutines have drained.
	failOnce sync.Once
	fatalErr error
}

// fail marks the job as unrecoverable and cancels it. Only the first
// failure is kept; later ones are casualties of the same outage.
func (j *job) fail(err error) {
	j.failOnce.Do(func() {
		j.fatalErr = err
		logging.Error("Import %s aborting: %v", j.batchID, err)
		j.cancel()
	})
}

// StartImport launches an import of sourceDir and returns its batch
// ID. Fails fast when the directory is unusable or an import is
// already running.
func (m *Manager) StartImport(ctx context.Context, sourceDir string) (string, error) {
	info, err := filesystem.StatWithRetry(sourceDir, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("source directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source path is not a directory: %s", sourceDir)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return "", ErrAlreadyRunning
	}

	batchID := uuid.NewString()
	if err := m.catalog.BeginBatch(ctx, batchID, sourceDir); err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		batchID:      batchID,
		sourceDir:    sourceDir,
		catalog:      m.catalog,
		exif:         m.exif,
		derivs:       m.derivs,
		engine:       m.engine,
		portraitRule: vision.DefaultPortraitRule(),
		tracker:      newTracker(batchID, sourceDir, stageNames),
		cancel:       cancel,
	}
	m.current = j

	metrics.ImportsTotal.Inc()
	metrics.ImportRunning.Set(1)
	logging.Info("Import %s started for %s", batchID, sourceDir)

	go func() {
		j.run(jobCtx)
		m.finish(j)
	}()

	return batchID, nil
}

// Cancel stops the running import. Items already persisted stay in
// the catalog; queued items are discarded.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoActiveJob
	}
	logging.Info("Import %s cancel requested", m.current.batchID)
	m.current.cancel()
	return nil
}

// Status returns the live snapshot of the running import, or the
// final snapshot of the last one. State is "idle" before any import.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return m.current.tracker.snapshot()
	}
	if m.last != nil {
		return *m.last
	}
	return Snapshot{State: StateIdle, Stages: map[string]StageProgress{}, UpdatedAt: time.Now()}
}

// Subscribe streams throttled progress snapshots for the running
// import. The returned cancel func must be called when done.
func (m *Manager) Subscribe() (<-chan Snapshot, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil, ErrNoActiveJob
	}
	ch, cancel := m.current.tracker.subscribe()
	return ch, cancel, nil
}

func (m *Manager) finish(j *job) {
	snap := j.tracker.snapshot()

	// Clear the slot and close the streams under one lock so a
	// concurrent Subscribe cannot register on the finished tracker
	// and hang on a channel nobody will close.
	m.mu.Lock()
	m.last = &snap
	m.current = nil
	j.tracker.closeSubscribers()
	m.mu.Unlock()

	metrics.ImportRunning.Set(0)
	metrics.ImportLastDuration.Set(snap.ElapsedSeconds)
}

// run wires the stage graph and blocks until the pipeline drains.
//
//	discover -> extract -> thumbnail -> hash -> fork -> tag ---+
//	                                            |              +-> join -> persist
//	                                            +------> embed-+
//
// Every queue is bounded, so a slow stage backs pressure all the way
// up into the directory walk instead of buffering decoded images
// without limit.
func (j *job) run(ctx context.Context) {
	start := time.Now()

	extractCh := make(chan *workItem, extractQueueCap)
	thumbCh := make(chan *workItem, thumbnailQueueCap)
	hashOutCh := make(chan *workItem, hashQueueCap)
	tagCh := make(chan *workItem, tagQueueCap)
	embedCh := make(chan *workItem, embedQueueCap)
	joinCh := make(chan *workItem, persistQueueCap)
	persistCh := make(chan *workItem, persistQueueCap)

	var discoverErr error
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		discoverErr = j.discover(ctx, extractCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(thumbCh)
		j.runStage(ctx, StageExtract, StageThumbnail, workers.ForIO(4), extractCh, thumbCh, j.extract)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(hashOutCh)
		j.runStage(ctx, StageThumbnail, StageHash, workers.ForCPU(8), thumbCh, hashOutCh, j.thumbnail)
	}()

	// hash forks each item into the tag and embed branches.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(tagCh)
		defer close(embedCh)
		hashedCh := make(chan *workItem, hashQueueCap)
		var hashWG sync.WaitGroup
		hashWG.Add(1)
		go func() {
			defer hashWG.Done()
			defer close(hashedCh)
			j.runStage(ctx, StageHash, "", workers.ForCPU(8), hashOutCh, hashedCh, j.hash)
		}()
		for it := range hashedCh {
			select {
			case tagCh <- it:
				j.tracker.stageQueued(StageTag)
			case <-ctx.Done():
				hashWG.Wait()
				return
			}
			select {
			case embedCh <- it:
				j.tracker.stageQueued(StageEmbed)
			case <-ctx.Done():
				hashWG.Wait()
				return
			}
		}
		hashWG.Wait()
	}()

	// tag and embed share the join queue; it closes when both finish.
	var branchWG sync.WaitGroup
	branchWG.Add(2)
	go func() {
		defer branchWG.Done()
		j.runStage(ctx, StageTag, "", workers.Serialized(), tagCh, joinCh, j.tag)
	}()
	go func() {
		defer branchWG.Done()
		j.runStage(ctx, StageEmbed, "", workers.ForCPU(2), embedCh, joinCh, j.embed)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(persistCh)
		j.join(ctx, joinCh, persistCh)
	}()
	go func() {
		branchWG.Wait()
		close(joinCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		j.runStage(ctx, StagePersist, "", 1, persistCh, nil, j.persist)
	}()

	wg.Wait()

	state := StateCompleted
	switch {
	case j.fatalErr != nil:
		state = StateFailed
		j.tracker.setError(j.fatalErr.Error())
	case ctx.Err() != nil:
		state = StateCancelled
	case discoverErr != nil:
		logging.Error("Import %s discovery failed: %v", j.batchID, discoverErr)
		state = StateFailed
	}
	j.tracker.setState(state)
	snap := j.tracker.snapshot()

	finishCtx, cancelFinish := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFinish()
	if err := j.catalog.FinishBatch(finishCtx, j.batchID, state,
		int(snap.Discovered), int(snap.Imported), int(snap.Skipped), int(snap.Failed)); err != nil {
		logging.Error("Failed to record import batch %s: %v", j.batchID, err)
	}

	logging.Info("Import %s %s: %d discovered, %d imported, %d skipped, %d failed in %s",
		j.batchID, state, snap.Discovered, snap.Imported, snap.Skipped, snap.Failed,
		time.Since(start).Round(time.Millisecond))
}

// join forwards an item to persist once both the tag and embed
// branches have delivered it. An item whose branch failed never
// arrives twice and is dropped with the failure already counted.
func (j *job) join(ctx context.Context, in <-chan *workItem, out chan<- *workItem) {
	seen := make(map[string]int)
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

		seen[it.photoID]++
		if seen[it.photoID] < 2 {
			continue
		}
		delete(seen, it.photoID)

		select {
		case out <- it:
			j.tracker.stageQueued(StagePersist)
		case <-ctx.Done():
			return
		}
	}
}
