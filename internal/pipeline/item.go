package pipeline

import (
	"image"
	"path/filepath"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/exiftool"
	"photo-catalog/internal/phototypes"
	"photo-catalog/internal/vision"
)

// Stage names, in pipeline order.
const (
	StageExtract   = "extract"
	StageThumbnail = "thumbnail"
	StageHash      = "hash"
	StageTag       = "tag"
	StageEmbed     = "embed"
	StagePersist   = "persist"
)

// stageNames lists every stage for progress and metrics registration.
var stageNames = []string{StageExtract, StageThumbnail, StageHash, StageTag, StageEmbed, StagePersist}

// Queue capacities per stage. The wide discovery end absorbs bursts
// from directory walking; the narrow tail bounds memory held in
// decoded derivatives waiting on the slow analysis stages.
const (
	extractQueueCap   = 256
	thumbnailQueueCap = 128
	hashQueueCap      = 128
	tagQueueCap       = 64
	embedQueueCap     = 64
	persistQueueCap   = 64
)

// workItem carries one file through the pipeline. Stages before the
// tag/embed fork own the item exclusively; after the fork the two
// branches write only their own fields and the join point republishes
// the item once both halves are done.
type workItem struct {
	photoID string
	path    string
	format  phototypes.Format

	fileSize int64
	modTime  int64

	// filled by extract
	meta       *exiftool.Metadata
	decodePath string // original, or extracted raw preview

	// filled by thumbnail
	previewPath   string
	thumbnailPath string

	// filled by hash
	contentHash string
	dhash       uint64
	thumbImg    image.Image // decoded thumbnail, shared by tag and embed

	// filled by the tag branch
	labels   []vision.Label
	portrait bool

	// filled by the embed branch
	embedding []float32
}

// record converts a fully processed item into a catalog row.
func (it *workItem) record(batchID string) *catalog.Photo {
	p := &catalog.Photo{
		ID:            it.photoID,
		FilePath:      it.path,
		FileName:      fileName(it.path),
		FileSize:      it.fileSize,
		ModTime:       it.modTime,
		Format:        it.format,
		ContentHash:   &it.contentHash,
		PreviewPath:   &it.previewPath,
		ThumbnailPath: &it.thumbnailPath,
		Embedding:     it.embedding,
		ImportBatchID: &batchID,
	}
	dhash := int64(it.dhash)
	p.DHash = &dhash

	if m := it.meta; m != nil {
		p.CameraMake = m.Make
		p.CameraModel = m.Model
		p.Lens = m.Lens
		p.DateTaken = m.DateTaken
		p.ISO = m.ISO
		p.FNumber = m.FNumber
		p.FocalLength = m.FocalLength
		p.ExposureTime = m.ExposureTime
		p.ExposureComp = m.ExposureComp
		p.GPSLat = m.GPSLat
		p.GPSLng = m.GPSLng
		p.Width = m.Width
		p.Height = m.Height
	}
	return p
}

// autoTags converts vision output into catalog tags.
func (it *workItem) autoTags() []catalog.Tag {
	tags := make([]catalog.Tag, 0, len(it.labels)+1)
	for _, l := range it.labels {
		tags = append(tags, catalog.Tag{Tag: l.Name, Confidence: l.Confidence, Source: catalog.TagSourceAuto})
	}
	if it.portrait {
		tags = append(tags, catalog.Tag{Tag: "portrait", Confidence: 1.0, Source: catalog.TagSourceAuto})
	}
	return tags
}

func fileName(path string) string {
	return filepath.Base(path)
}
