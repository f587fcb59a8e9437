package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"photo-catalog/internal/phototypes"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("failed to close catalog: %v", err)
		}
	})
	return c
}

func testPhoto(id, path string) *Photo {
	hash := "abc123"
	dhash := int64(0x1234)
	taken := int64(1700000000)
	camMake := "Canon"
	return &Photo{
		ID:          id,
		FilePath:    path,
		FileName:    filepath.Base(path),
		FileSize:    1024,
		ModTime:     1699999999,
		Format:      phototypes.FormatImage,
		ContentHash: &hash,
		DHash:       &dhash,
		DateTaken:   &taken,
		CameraMake:  &camMake,
		Embedding:   []float32{0.5, 0.5, 0.70710678},
	}
}

func TestUpsertAndGetPhoto(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	p := testPhoto("p1", "/photos/a.jpg")
	if err := c.UpsertPhoto(ctx, p); err != nil {
		t.Fatalf("UpsertPhoto: %v", err)
	}

	got, err := c.GetPhoto(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if got.FilePath != "/photos/a.jpg" {
		t.Errorf("FilePath = %q", got.FilePath)
	}
	if got.ContentHash == nil || *got.ContentHash != "abc123" {
		t.Errorf("ContentHash = %v", got.ContentHash)
	}
	if hash, ok := got.PerceptualHash(); !ok || hash != 0x1234 {
		t.Errorf("PerceptualHash = %x, %v", hash, ok)
	}
	if len(got.Embedding) != 3 {
		t.Fatalf("Embedding length = %d, want 3", len(got.Embedding))
	}
	if got.Embedding[2] < 0.7 || got.Embedding[2] > 0.71 {
		t.Errorf("Embedding[2] = %v", got.Embedding[2])
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	c := testCatalog(t)
	if _, err := c.GetPhoto(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPhoto on missing id = %v, want ErrNotFound", err)
	}
}

func TestStatusByPath(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	status, err := c.StatusByPath(ctx, "/photos/new.jpg")
	if err != nil {
		t.Fatalf("StatusByPath: %v", err)
	}
	if status != nil {
		t.Fatalf("status for unknown path = %+v, want nil", status)
	}

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatalf("UpsertPhoto: %v", err)
	}

	status, err = c.StatusByPath(ctx, "/photos/a.jpg")
	if err != nil {
		t.Fatalf("StatusByPath: %v", err)
	}
	if status == nil || status.ID != "p1" {
		t.Fatalf("status = %+v", status)
	}
	if !status.Unchanged(1699999999, 1024) {
		t.Error("Unchanged should be true for matching mtime and size")
	}
	if status.Unchanged(1699999999, 2048) {
		t.Error("Unchanged should be false for different size")
	}
}

func TestReimportKeepsIdentityAndCullState(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatalf("UpsertPhoto: %v", err)
	}
	if err := c.SetRating(ctx, "p1", 4); err != nil {
		t.Fatalf("SetRating: %v", err)
	}
	if err := c.SetPicked(ctx, "p1", true); err != nil {
		t.Fatalf("SetPicked: %v", err)
	}

	// Same path, different content: the upsert keeps the row.
	changed := testPhoto("p2-ignored", "/photos/a.jpg")
	newHash := "def456"
	changed.ContentHash = &newHash
	if err := c.UpsertPhoto(ctx, changed); err != nil {
		t.Fatalf("UpsertPhoto (reimport): %v", err)
	}

	got, err := c.GetPhoto(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPhoto after reimport: %v", err)
	}
	if *got.ContentHash != "def456" {
		t.Errorf("ContentHash = %q, want updated def456", *got.ContentHash)
	}
	if got.Rating != 4 || !got.Picked {
		t.Errorf("cull state lost on reimport: rating=%d picked=%v", got.Rating, got.Picked)
	}
}

func TestCullStateTransitions(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatalf("UpsertPhoto: %v", err)
	}

	if err := c.SetRating(ctx, "p1", 6); err == nil {
		t.Error("rating above 5 should be rejected")
	}
	if err := c.SetRating(ctx, "p1", -1); err == nil {
		t.Error("negative rating should be rejected")
	}
	if err := c.SetRating(ctx, "missing", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRating on missing photo = %v, want ErrNotFound", err)
	}

	// Pick then reject: the flags are mutually exclusive.
	if err := c.SetPicked(ctx, "p1", true); err != nil {
		t.Fatalf("SetPicked: %v", err)
	}
	if err := c.SetRejected(ctx, "p1", true); err != nil {
		t.Fatalf("SetRejected: %v", err)
	}
	got, err := c.GetPhoto(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if got.Picked || !got.Rejected {
		t.Errorf("after reject: picked=%v rejected=%v, want false/true", got.Picked, got.Rejected)
	}
}

func TestBatchUpdateCull(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		if err := c.UpsertPhoto(ctx, testPhoto(id, "/photos/"+id+".jpg")); err != nil {
			t.Fatalf("UpsertPhoto: %v", err)
		}
	}

	rating := 3
	picked := true
	n, err := c.BatchUpdateCull(ctx, CullUpdate{
		PhotoIDs: []string{"p1", "p3"},
		Rating:   &rating,
		Picked:   &picked,
	})
	if err != nil {
		t.Fatalf("BatchUpdateCull: %v", err)
	}
	if n != 2 {
		t.Errorf("updated %d rows, want 2", n)
	}

	got, _ := c.GetPhoto(ctx, "p3")
	if got.Rating != 3 || !got.Picked {
		t.Errorf("p3 not updated: %+v", got)
	}
	got, _ = c.GetPhoto(ctx, "p2")
	if got.Rating != 0 || got.Picked {
		t.Errorf("p2 should be untouched: %+v", got)
	}
}

func TestQueryPhotosFilters(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	a := testPhoto("p1", "/photos/a.jpg")
	b := testPhoto("p2", "/photos/b.jpg")
	nikon := "Nikon"
	b.CameraMake = &nikon
	if err := c.UpsertPhoto(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertPhoto(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPicked(ctx, "p1", true); err != nil {
		t.Fatal(err)
	}

	photos, err := c.QueryPhotos(ctx, QueryFilters{View: ViewPicks})
	if err != nil {
		t.Fatalf("QueryPhotos picks: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p1" {
		t.Errorf("picks = %+v", photos)
	}

	photos, err = c.QueryPhotos(ctx, QueryFilters{CameraMake: "nikon"})
	if err != nil {
		t.Fatalf("QueryPhotos camera: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p2" {
		t.Errorf("camera filter = %+v", photos)
	}

	photos, err = c.QueryPhotos(ctx, QueryFilters{
		Sort:  phototypes.SortByFileName,
		Order: phototypes.SortAsc,
	})
	if err != nil {
		t.Fatalf("QueryPhotos sorted: %v", err)
	}
	if len(photos) != 2 || photos[0].FileName != "a.jpg" {
		t.Errorf("sort by name asc = %+v", photos)
	}

	photos, err = c.QueryPhotos(ctx, QueryFilters{Limit: 1, Offset: 1, Sort: phototypes.SortByFileName, Order: phototypes.SortAsc})
	if err != nil {
		t.Fatalf("QueryPhotos paged: %v", err)
	}
	if len(photos) != 1 || photos[0].FileName != "b.jpg" {
		t.Errorf("paging = %+v", photos)
	}

	if _, err := c.QueryPhotos(ctx, QueryFilters{View: "bogus"}); err == nil {
		t.Error("unknown view should fail")
	}
}

func TestSmartViewCounts(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	batch := "batch-1"
	for _, id := range []string{"p1", "p2", "p3"} {
		p := testPhoto(id, "/photos/"+id+".jpg")
		p.ImportBatchID = &batch
		if err := c.UpsertPhoto(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.BeginBatch(ctx, batch, "/photos"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPicked(ctx, "p1", true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetRejected(ctx, "p2", true); err != nil {
		t.Fatal(err)
	}

	counts, err := c.SmartViewCounts(ctx)
	if err != nil {
		t.Fatalf("SmartViewCounts: %v", err)
	}
	if counts[ViewPicks] != 1 || counts[ViewRejects] != 1 || counts[ViewUnsorted] != 1 {
		t.Errorf("counts = %+v", counts)
	}
	if counts[ViewLastImport] != 3 {
		t.Errorf("last import count = %d, want 3", counts[ViewLastImport])
	}
}

func TestTags(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatal(err)
	}

	auto := []Tag{
		{Tag: "Vivid", Confidence: 0.8},
		{Tag: "portrait", Confidence: 1.0},
	}
	if err := c.ReplaceAutoTags(ctx, "p1", auto); err != nil {
		t.Fatalf("ReplaceAutoTags: %v", err)
	}
	if err := c.AddManualTag(ctx, "p1", "Vacation"); err != nil {
		t.Fatalf("AddManualTag: %v", err)
	}

	got, err := c.GetPhoto(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 3 {
		t.Fatalf("got %d tags, want 3: %+v", len(got.Tags), got.Tags)
	}

	// Re-tagging replaces auto tags but keeps manual ones.
	if err := c.ReplaceAutoTags(ctx, "p1", []Tag{{Tag: "low-light", Confidence: 0.9}}); err != nil {
		t.Fatalf("ReplaceAutoTags (second): %v", err)
	}
	got, _ = c.GetPhoto(ctx, "p1")
	if len(got.Tags) != 2 {
		t.Fatalf("got %d tags after replace, want 2: %+v", len(got.Tags), got.Tags)
	}
	var hasManual bool
	for _, tag := range got.Tags {
		if tag.Tag == "vacation" && tag.Source == TagSourceManual {
			hasManual = true
		}
	}
	if !hasManual {
		t.Error("manual tag lost on auto re-tag")
	}

	if err := c.AddManualTag(ctx, "p1", "  "); err == nil {
		t.Error("blank tag should be rejected")
	}

	if err := c.RemoveManualTag(ctx, "p1", "VACATION"); err != nil {
		t.Fatalf("RemoveManualTag: %v", err)
	}
	got, _ = c.GetPhoto(ctx, "p1")
	if len(got.Tags) != 1 {
		t.Errorf("got %d tags after removal, want 1: %+v", len(got.Tags), got.Tags)
	}

	counts, err := c.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if counts["low-light"] != 1 {
		t.Errorf("tag counts = %+v", counts)
	}
}

func TestTagFilterQuery(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertPhoto(ctx, testPhoto("p2", "/photos/b.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := c.AddManualTag(ctx, "p1", "sunset"); err != nil {
		t.Fatal(err)
	}

	photos, err := c.QueryPhotos(ctx, QueryFilters{Tag: "Sunset"})
	if err != nil {
		t.Fatalf("QueryPhotos tag: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p1" {
		t.Errorf("tag filter = %+v", photos)
	}
}

func TestListHashesAndEmbeddings(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	withHash := testPhoto("p1", "/photos/a.jpg")
	noHash := testPhoto("p2", "/photos/b.jpg")
	noHash.DHash = nil
	noHash.Embedding = nil
	if err := c.UpsertPhoto(ctx, withHash); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertPhoto(ctx, noHash); err != nil {
		t.Fatal(err)
	}

	hashes, err := c.ListHashes(ctx)
	if err != nil {
		t.Fatalf("ListHashes: %v", err)
	}
	if len(hashes) != 1 || hashes[0].ID != "p1" || hashes[0].Hash != 0x1234 {
		t.Errorf("hashes = %+v", hashes)
	}

	embeddings, err := c.ListEmbeddings(ctx)
	if err != nil {
		t.Fatalf("ListEmbeddings: %v", err)
	}
	if len(embeddings) != 1 || embeddings[0].ID != "p1" {
		t.Errorf("embeddings = %+v", embeddings)
	}
}

func TestDeletePhotoCascadesTags(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := c.AddManualTag(ctx, "p1", "keeper"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeletePhoto(ctx, "p1"); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if err := c.DeletePhoto(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}

	counts, err := c.ListTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 {
		t.Errorf("tags survived photo deletion: %+v", counts)
	}
}

func TestExportCSV(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if err := c.UpsertPhoto(ctx, testPhoto("p1", "/photos/a.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertPhoto(ctx, testPhoto("p2", "/photos/b.jpg")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := c.ExportCSV(ctx, &buf, QueryFilters{Sort: phototypes.SortByFileName, Order: phototypes.SortAsc}); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse exported CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d CSV rows, want header + 2", len(records))
	}
	if records[0][0] != "id" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][2] != "a.jpg" || records[2][2] != "b.jpg" {
		t.Errorf("rows out of order: %v / %v", records[1], records[2])
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}
	got := decodeEmbedding(encodeEmbedding(vec))
	if len(got) != len(vec) {
		t.Fatalf("length %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("index %d: %v != %v", i, got[i], vec[i])
		}
	}

	if decodeEmbedding(nil) != nil {
		t.Error("nil blob should decode to nil")
	}
	if decodeEmbedding([]byte{1, 2, 3}) != nil {
		t.Error("truncated blob should decode to nil")
	}
}

func TestQueryPhotosMetadataFilters(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	sunset := testPhoto("p1", "/photos/sunset_beach.jpg")
	lens := "RF 50mm F1.8"
	iso := int64(100)
	lat, lng := 52.5, 13.4
	sunset.Lens = &lens
	sunset.ISO = &iso
	sunset.GPSLat = &lat
	sunset.GPSLng = &lng

	night := testPhoto("p2", "/photos/night_sky.jpg")
	highISO := int64(6400)
	night.ISO = &highISO

	for _, p := range []*Photo{sunset, night} {
		if err := c.UpsertPhoto(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	photos, err := c.QueryPhotos(ctx, QueryFilters{Search: "sunset"})
	if err != nil {
		t.Fatalf("QueryPhotos search: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p1" {
		t.Errorf("search filter = %+v", photos)
	}

	photos, err = c.QueryPhotos(ctx, QueryFilters{Lens: "rf 50mm f1.8"})
	if err != nil {
		t.Fatalf("QueryPhotos lens: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p1" {
		t.Errorf("lens filter = %+v", photos)
	}

	isoMin := int64(1000)
	photos, err = c.QueryPhotos(ctx, QueryFilters{ISOMin: &isoMin})
	if err != nil {
		t.Fatalf("QueryPhotos isoMin: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p2" {
		t.Errorf("isoMin filter = %+v", photos)
	}

	isoMax := int64(200)
	photos, err = c.QueryPhotos(ctx, QueryFilters{ISOMax: &isoMax})
	if err != nil {
		t.Fatalf("QueryPhotos isoMax: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p1" {
		t.Errorf("isoMax filter = %+v", photos)
	}

	hasGPS := true
	photos, err = c.QueryPhotos(ctx, QueryFilters{HasGPS: &hasGPS})
	if err != nil {
		t.Fatalf("QueryPhotos hasGps: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p1" {
		t.Errorf("hasGps=true filter = %+v", photos)
	}

	hasGPS = false
	photos, err = c.QueryPhotos(ctx, QueryFilters{HasGPS: &hasGPS})
	if err != nil {
		t.Fatalf("QueryPhotos no-gps: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "p2" {
		t.Errorf("hasGps=false filter = %+v", photos)
	}
}
