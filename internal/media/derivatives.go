package media

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PreviewLongEdge is the bounding box for screen-sized previews.
	PreviewLongEdge = 1600
	// ThumbnailLongEdge is the bounding box for grid thumbnails.
	ThumbnailLongEdge = 320

	previewQuality   = 85
	thumbnailQuality = 80
)

// DerivativeStore manages the on-disk preview and thumbnail JPEGs
// generated during import, keyed by photo ID.
type DerivativeStore struct {
	previewDir string
	thumbDir   string
}

// NewDerivativeStore creates the preview and thumbnail directories
// under root.
func NewDerivativeStore(root string) (*DerivativeStore, error) {
	s := &DerivativeStore{
		previewDir: filepath.Join(root, "previews"),
		thumbDir:   filepath.Join(root, "thumbnails"),
	}
	for _, dir := range []string{s.previewDir, s.thumbDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create derivative directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// PreviewPath returns where the preview for a photo ID lives.
func (s *DerivativeStore) PreviewPath(photoID string) string {
	return filepath.Join(s.previewDir, photoID+".jpg")
}

// ThumbnailPath returns where the thumbnail for a photo ID lives.
func (s *DerivativeStore) ThumbnailPath(photoID string) string {
	return filepath.Join(s.thumbDir, photoID+".jpg")
}

// ScratchPath returns a temp location for raw preview extraction.
func (s *DerivativeStore) ScratchPath(photoID string) string {
	return filepath.Join(s.previewDir, photoID+".extracted.jpg")
}

// BuildPreview decodes srcPath scaled to the preview bounding box and
// writes the preview JPEG for photoID. Returns the preview path.
func (s *DerivativeStore) BuildPreview(srcPath, photoID string) (string, error) {
	img, err := LoadScaled(srcPath, PreviewLongEdge, PreviewLongEdge)
	if err != nil {
		return "", err
	}
	out := s.PreviewPath(photoID)
	if err := SaveJPEG(img, out, previewQuality); err != nil {
		return "", err
	}
	return out, nil
}

// BuildThumbnail scales the already-generated preview down to the
// thumbnail bounding box. Working from the preview keeps this step
// cheap for large originals.
func (s *DerivativeStore) BuildThumbnail(previewPath, photoID string) (string, error) {
	img, err := LoadScaled(previewPath, ThumbnailLongEdge, ThumbnailLongEdge)
	if err != nil {
		return "", err
	}
	out := s.ThumbnailPath(photoID)
	if err := SaveJPEG(img, out, thumbnailQuality); err != nil {
		return "", err
	}
	return out, nil
}

// Remove deletes the derivatives for a photo ID. Missing files are
// not an error.
func (s *DerivativeStore) Remove(photoID string) {
	os.Remove(s.PreviewPath(photoID))
	os.Remove(s.ThumbnailPath(photoID))
	os.Remove(s.ScratchPath(photoID))
}
