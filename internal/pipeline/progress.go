package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// publishInterval throttles progress fan-out so a fast import does not
// drown subscribers in updates.
const publishInterval = 200 * time.Millisecond

// StageProgress is the per-stage state in a snapshot: items waiting in
// the stage queue, items inside stage work, finished counts, and a
// rolling throughput estimate.
type StageProgress struct {
	Pending    int64   `json:"pending"`
	InProgress int64   `json:"inProgress"`
	Completed  int64   `json:"completed"`
	Failed     int64   `json:"failed"`
	PerSecond  float64 `json:"perSecond"`
}

// Snapshot is a point-in-time view of a running or finished import.
// CurrentStage names the stage holding the most unfinished work.
type Snapshot struct {
	BatchID        string                   `json:"batchId"`
	SourceDir      string                   `json:"sourceDir"`
	State          string                   `json:"state"`
	Error          string                   `json:"error,omitempty"`
	Discovered     int64                    `json:"discovered"`
	Skipped        int64                    `json:"skipped"`
	Imported       int64                    `json:"imported"`
	Failed         int64                    `json:"failed"`
	Stages         map[string]StageProgress `json:"stages"`
	CurrentStage   string                   `json:"currentStage,omitempty"`
	FilesPerSecond float64                  `json:"filesPerSecond"`
	ElapsedSeconds float64                  `json:"elapsedSeconds"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

// tracker accumulates counters from all stage workers and publishes
// throttled snapshots to subscribers. Counter updates are atomic;
// the subscriber set and rate windows are guarded by a mutex.
type tracker struct {
	batchID   string
	sourceDir string
	startedAt time.Time
	stages    []string

	discovered atomic.Int64
	skipped    atomic.Int64
	imported   atomic.Int64
	failed     atomic.Int64

	stagePending map[string]*atomic.Int64
	stageActive  map[string]*atomic.Int64
	stageDone    map[string]*atomic.Int64
	stageFail    map[string]*atomic.Int64

	mu          sync.Mutex
	state       string
	errMsg      string
	subscribers map[chan Snapshot]struct{}
	lastPublish time.Time

	// rate windows for throughput, overall and per stage
	windowStart time.Time
	windowBase  int64
	rate        float64
	stageBase   map[string]int64
	stageRate   map[string]float64
}

func newTracker(batchID, sourceDir string, stages []string) *tracker {
	t := &tracker{
		batchID:      batchID,
		sourceDir:    sourceDir,
		startedAt:    time.Now(),
		stages:       stages,
		state:        StateRunning,
		stagePending: make(map[string]*atomic.Int64, len(stages)),
		stageActive:  make(map[string]*atomic.Int64, len(stages)),
		stageDone:    make(map[string]*atomic.Int64, len(stages)),
		stageFail:    make(map[string]*atomic.Int64, len(stages)),
		stageBase:    make(map[string]int64, len(stages)),
		stageRate:    make(map[string]float64, len(stages)),
		subscribers:  make(map[chan Snapshot]struct{}),
		windowStart:  time.Now(),
	}
	for _, s := range stages {
		t.stagePending[s] = &atomic.Int64{}
		t.stageActive[s] = &atomic.Int64{}
		t.stageDone[s] = &atomic.Int64{}
		t.stageFail[s] = &atomic.Int64{}
	}
	return t
}

// stageQueued records an item landing in a stage's input queue.
func (t *tracker) stageQueued(stage string) {
	if c, ok := t.stagePending[stage]; ok {
		c.Add(1)
	}
}

// stageStarted records a worker picking an item up from the queue.
func (t *tracker) stageStarted(stage string) {
	if c, ok := t.stagePending[stage]; ok {
		c.Add(-1)
	}
	if c, ok := t.stageActive[stage]; ok {
		c.Add(1)
	}
}

func (t *tracker) stageCompleted(stage string) {
	if c, ok := t.stageActive[stage]; ok {
		c.Add(-1)
	}
	if c, ok := t.stageDone[stage]; ok {
		c.Add(1)
	}
	t.maybePublish(false)
}

func (t *tracker) stageFailed(stage string) {
	if c, ok := t.stageActive[stage]; ok {
		c.Add(-1)
	}
	if c, ok := t.stageFail[stage]; ok {
		c.Add(1)
	}
	t.failed.Add(1)
	t.maybePublish(false)
}

func (t *tracker) fileDiscovered() {
	t.discovered.Add(1)
	t.maybePublish(false)
}

func (t *tracker) fileSkipped() {
	t.skipped.Add(1)
	t.maybePublish(false)
}

func (t *tracker) filePersisted() {
	t.imported.Add(1)
	t.maybePublish(false)
}

func (t *tracker) setState(state string) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	t.maybePublish(true)
}

// setError records the job-fatal error shown on the final snapshot.
func (t *tracker) setError(msg string) {
	t.mu.Lock()
	t.errMsg = msg
	t.mu.Unlock()
}

// subscribe registers a progress channel. The channel is buffered and
// updates are dropped rather than blocking the pipeline when the
// consumer lags.
func (t *tracker) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()

	// Seed the new subscriber immediately.
	select {
	case ch <- t.snapshot():
	default:
	}

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subscribers[ch]; ok {
			delete(t.subscribers, ch)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

func (t *tracker) maybePublish(force bool) {
	t.mu.Lock()
	now := time.Now()
	if !force && now.Sub(t.lastPublish) < publishInterval {
		t.mu.Unlock()
		return
	}
	t.lastPublish = now

	// Refresh the throughput windows roughly once a second.
	if elapsed := now.Sub(t.windowStart); elapsed >= time.Second {
		done := t.imported.Load() + t.skipped.Load() + t.failed.Load()
		t.rate = float64(done-t.windowBase) / elapsed.Seconds()
		t.windowBase = done
		for _, s := range t.stages {
			stageDone := t.stageDone[s].Load() + t.stageFail[s].Load()
			t.stageRate[s] = float64(stageDone-t.stageBase[s]) / elapsed.Seconds()
			t.stageBase[s] = stageDone
		}
		t.windowStart = now
	}

	snap := t.snapshotLocked()
	for ch := range t.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
	t.mu.Unlock()
}

func (t *tracker) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *tracker) snapshotLocked() Snapshot {
	stages := make(map[string]StageProgress, len(t.stages))
	current := ""
	var currentLoad int64
	for _, name := range t.stages {
		pending := t.stagePending[name].Load()
		active := t.stageActive[name].Load()
		stages[name] = StageProgress{
			Pending:    pending,
			InProgress: active,
			Completed:  t.stageDone[name].Load(),
			Failed:     t.stageFail[name].Load(),
			PerSecond:  t.stageRate[name],
		}
		// The dominant stage is the earliest one holding the most
		// unfinished work.
		if load := pending + active; load > currentLoad {
			current = name
			currentLoad = load
		}
	}
	return Snapshot{
		BatchID:        t.batchID,
		SourceDir:      t.sourceDir,
		State:          t.state,
		Error:          t.errMsg,
		Discovered:     t.discovered.Load(),
		Skipped:        t.skipped.Load(),
		Imported:       t.imported.Load(),
		Failed:         t.failed.Load(),
		Stages:         stages,
		CurrentStage:   current,
		FilesPerSecond: t.rate,
		ElapsedSeconds: time.Since(t.startedAt).Seconds(),
		UpdatedAt:      time.Now(),
	}
}

// closeSubscribers ends every progress stream after the final
// snapshot has been published.
func (t *tracker) closeSubscribers() {
	t.mu.Lock()
	for ch := range t.subscribers {
		delete(t.subscribers, ch)
		close(ch)
	}
	t.mu.Unlock()
}
