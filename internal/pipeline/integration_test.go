package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/dupes"
	"photo-catalog/internal/exiftool"
	"photo-catalog/internal/media"
	"photo-catalog/internal/vision"
)

// requireExiftool skips tests that shell out to the metadata tool.
func requireExiftool(t *testing.T) *exiftool.Client {
	t.Helper()
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
	client, err := exiftool.New("")
	if err != nil {
		t.Fatalf("exiftool.New: %v", err)
	}
	return client
}

// writeSourceTree writes count distinct JPEGs plus one near-duplicate
// of the first image, and returns the source directory.
func writeSourceTree(t *testing.T, count int) string {
	t.Helper()
	dir := t.TempDir()

	for i := 0; i < count; i++ {
		// A coarse random block pattern per image gives each file a
		// distinctive perceptual hash that survives JPEG re-encoding.
		rng := rand.New(rand.NewSource(int64(i) + 1))
		const block = 25
		img := image.NewRGBA(image.Rect(0, 0, 9*block, 8*block))
		for by := 0; by < 8; by++ {
			for bx := 0; bx < 9; bx++ {
				c := color.RGBA{A: 255}
				if rng.Intn(2) == 1 {
					c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
				}
				for y := by * block; y < (by+1)*block; y++ {
					for x := bx * block; x < (bx+1)*block; x++ {
						img.SetRGBA(x, y, c)
					}
				}
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("img_%02d.jpg", i))
		if err := imaging.Save(img, path); err != nil {
			t.Fatalf("failed to write source image: %v", err)
		}
	}

	// Near-duplicate of img_00: same pixels, re-encoded.
	first, err := imaging.Open(filepath.Join(dir, "img_00.jpg"))
	if err != nil {
		t.Fatalf("failed to reopen first image: %v", err)
	}
	if err := imaging.Save(first, filepath.Join(dir, "img_00_copy.jpg"), imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("failed to write duplicate image: %v", err)
	}

	return dir
}

func newTestManager(t *testing.T) (*Manager, *catalog.Catalog) {
	t.Helper()
	exif := requireExiftool(t)

	cat, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	derivs, err := media.NewDerivativeStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDerivativeStore: %v", err)
	}

	return NewManager(cat, exif, derivs, vision.NewHeuristicEngine()), cat
}

func waitForIdle(t *testing.T, m *Manager) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		snap := m.Status()
		if snap.State != StateRunning && snap.State != StateIdle {
			return snap
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("import did not finish in time")
	return Snapshot{}
}

func TestImportEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	m, cat := newTestManager(t)
	src := writeSourceTree(t, 9) // 9 distinct + 1 duplicate = 10 files

	batchID, err := m.StartImport(context.Background(), src)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if batchID == "" {
		t.Fatal("empty batch ID")
	}

	snap := waitForIdle(t, m)
	if snap.State != StateCompleted {
		t.Fatalf("final state = %q, want completed (%+v)", snap.State, snap)
	}
	if snap.Discovered != 10 {
		t.Errorf("discovered = %d, want 10", snap.Discovered)
	}
	if snap.Imported != 10 {
		t.Errorf("imported = %d, want 10 (failed=%d)", snap.Imported, snap.Failed)
	}

	ctx := context.Background()

	// Every photo has a hash and an embedding.
	hashes, err := cat.ListHashes(ctx)
	if err != nil {
		t.Fatalf("ListHashes: %v", err)
	}
	if len(hashes) != 10 {
		t.Errorf("got %d hashes, want 10", len(hashes))
	}
	embeddings, err := cat.ListEmbeddings(ctx)
	if err != nil {
		t.Fatalf("ListEmbeddings: %v", err)
	}
	if len(embeddings) != 10 {
		t.Errorf("got %d embeddings, want 10", len(embeddings))
	}

	// The re-encoded copy groups with its source.
	groups := dupes.FindGroups(hashes, dupes.DefaultThreshold)
	found := false
	for _, g := range groups {
		if len(g.PhotoIDs) >= 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("no duplicate group found; groups = %+v", groups)
	}
}

func TestImportIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	m, _ := newTestManager(t)
	src := writeSourceTree(t, 4)

	if _, err := m.StartImport(context.Background(), src); err != nil {
		t.Fatalf("first StartImport: %v", err)
	}
	first := waitForIdle(t, m)
	if first.Imported != 5 {
		t.Fatalf("first import: imported = %d, want 5", first.Imported)
	}

	// Unchanged files are skipped wholesale on the second run.
	if _, err := m.StartImport(context.Background(), src); err != nil {
		t.Fatalf("second StartImport: %v", err)
	}
	second := waitForIdle(t, m)
	if second.Skipped != 5 {
		t.Errorf("second import: skipped = %d, want 5", second.Skipped)
	}
	if second.Imported != 0 {
		t.Errorf("second import: imported = %d, want 0", second.Imported)
	}
}

func TestImportSingleFlight(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	m, _ := newTestManager(t)
	src := writeSourceTree(t, 8)

	if _, err := m.StartImport(context.Background(), src); err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if _, err := m.StartImport(context.Background(), src); err != ErrAlreadyRunning {
		t.Errorf("concurrent StartImport = %v, want ErrAlreadyRunning", err)
	}
	waitForIdle(t, m)
}

func TestImportCancellation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	m, _ := newTestManager(t)
	src := writeSourceTree(t, 30)

	if _, err := m.StartImport(context.Background(), src); err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	snap := waitForIdle(t, m)
	if snap.State != StateCancelled && snap.State != StateCompleted {
		t.Errorf("state after cancel = %q", snap.State)
	}
	// Whatever finished stays; nothing should be reported failed just
	// because the job stopped.
	if snap.Failed != 0 {
		t.Errorf("cancelled import reported %d failures", snap.Failed)
	}
}
