package catalog

import (
	"encoding/binary"
	"math"

	"photo-catalog/internal/phototypes"
)

// Photo is a catalog row. Pointer fields are nullable columns.
type Photo struct {
	ID            string            `json:"id"`
	FilePath      string            `json:"filePath"`
	FileName      string            `json:"fileName"`
	FileSize      int64             `json:"fileSize"`
	ModTime       int64             `json:"modTime"`
	Format        phototypes.Format `json:"format"`
	ContentHash   *string           `json:"contentHash,omitempty"`
	DHash         *int64            `json:"-"` // perceptual hash, stored signed
	Width         *int64            `json:"width,omitempty"`
	Height        *int64            `json:"height,omitempty"`
	CameraMake    *string           `json:"cameraMake,omitempty"`
	CameraModel   *string           `json:"cameraModel,omitempty"`
	Lens          *string           `json:"lens,omitempty"`
	DateTaken     *int64            `json:"dateTaken,omitempty"`
	ISO           *int64            `json:"iso,omitempty"`
	FNumber       *float64          `json:"fnumber,omitempty"`
	FocalLength   *float64          `json:"focalLength,omitempty"`
	ExposureTime  *float64          `json:"exposureTime,omitempty"`
	ExposureComp  *float64          `json:"exposureComp,omitempty"`
	GPSLat        *float64          `json:"gpsLat,omitempty"`
	GPSLng        *float64          `json:"gpsLng,omitempty"`
	PreviewPath   *string           `json:"previewPath,omitempty"`
	ThumbnailPath *string           `json:"thumbnailPath,omitempty"`
	Embedding     []float32         `json:"-"`
	Rating        int               `json:"rating"`
	Picked        bool              `json:"picked"`
	Rejected      bool              `json:"rejected"`
	ImportBatchID *string           `json:"importBatchId,omitempty"`
	CreatedAt     int64             `json:"createdAt"`
	UpdatedAt     int64             `json:"updatedAt"`

	Tags []Tag `json:"tags,omitempty"`
}

// PerceptualHash returns the stored dHash as an unsigned 64-bit value.
func (p *Photo) PerceptualHash() (uint64, bool) {
	if p.DHash == nil {
		return 0, false
	}
	return uint64(*p.DHash), true
}

// Tag is a label attached to a photo, either produced by the tagging
// stage ("auto") or added by the user ("manual").
type Tag struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Tag sources.
const (
	TagSourceAuto   = "auto"
	TagSourceManual = "manual"
)

// PhotoStatus is the minimal state needed to decide whether a file on
// disk has to be re-imported.
type PhotoStatus struct {
	ID       string
	ModTime  int64
	FileSize int64
}

// Unchanged reports whether the on-disk file matches the stored row.
func (s *PhotoStatus) Unchanged(modTime, size int64) bool {
	return s.ModTime == modTime && s.FileSize == size
}

// SmartView names a predefined photo filter.
type SmartView string

// Smart views.
const (
	ViewUnsorted   SmartView = "unsorted"
	ViewPicks      SmartView = "picks"
	ViewRejects    SmartView = "rejects"
	ViewLastImport SmartView = "last_import"
)

// QueryFilters selects and orders photos for listing and export.
type QueryFilters struct {
	View        SmartView
	Search      string
	CameraMake  string
	CameraModel string
	Lens        string
	Tag         string
	MinRating   int
	ISOMin      *int64
	ISOMax      *int64
	HasGPS      *bool
	DateFrom    *int64
	DateTo      *int64
	PathPrefix  string
	Sort        phototypes.SortField
	Order       phototypes.SortOrder
	Limit       int
	Offset      int
}

// HashEntry pairs a photo ID with its perceptual hash for duplicate
// grouping.
type HashEntry struct {
	ID   string
	Hash uint64
}

// EmbeddingEntry pairs a photo ID with its embedding vector for
// similarity ranking.
type EmbeddingEntry struct {
	ID     string
	Vector []float32
}

// CullUpdate is a batch change to rating or pick/reject state.
type CullUpdate struct {
	PhotoIDs []string `json:"photoIds"`
	Rating   *int     `json:"rating,omitempty"`
	Picked   *bool    `json:"picked,omitempty"`
	Rejected *bool    `json:"rejected,omitempty"`
}

// encodeEmbedding packs a float32 vector into a little-endian blob.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian blob into a float32 vector.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
