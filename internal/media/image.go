package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"photo-catalog/internal/logging"

	"github.com/disintegration/imaging"

	// webp is decode-only and not registered by imaging; bmp, gif, and
	// tiff come with the imaging import.
	_ "golang.org/x/image/webp"
)

// LoadScaled loads an image scaled down to fit within the given
// bounding box, preserving aspect ratio. Images smaller than the box
// are returned at their original size.
//
// The accelerated libvips path is used when available; otherwise the
// pure-Go decoder runs. Both paths honor EXIF orientation.
func LoadScaled(path string, maxWidth, maxHeight int) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := loadScaledWithVips(path, maxWidth, maxHeight)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips load failed for %s, falling back to pure-Go decode: %v", filepath.Base(path), err)
	}
	return loadScaledFallback(path, maxWidth, maxHeight)
}

func loadScaledFallback(path string, maxWidth, maxHeight int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth && bounds.Dy() <= maxHeight {
		return img, nil
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos), nil
}

// Dimensions returns the pixel dimensions of an image file without
// decoding the full bitmap.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header for %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}

// SaveJPEG writes an image as JPEG, creating parent directories as
// needed.
func SaveJPEG(img image.Image, path string, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
