// Package exiftool invokes the external ExifTool binary to read image
// metadata and to extract embedded previews from camera raw files. The
// tool is treated as a black box: files it cannot parse yield empty
// metadata, not an error.
package exiftool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"photo-catalog/internal/logging"
)

// Metadata holds the structured fields mapped from ExifTool output.
// Fields the tool does not report stay nil; they are never defaulted
// to sentinel values.
type Metadata struct {
	Make         *string  `json:"make,omitempty"`
	Model        *string  `json:"model,omitempty"`
	Lens         *string  `json:"lens,omitempty"`
	DateTaken    *int64   `json:"dateTaken,omitempty"` // unix seconds
	ISO          *int64   `json:"iso,omitempty"`
	FNumber      *float64 `json:"fnumber,omitempty"`
	FocalLength  *float64 `json:"focalLength,omitempty"`
	ExposureTime *float64 `json:"exposureTime,omitempty"`
	ExposureComp *float64 `json:"exposureComp,omitempty"`
	GPSLat       *float64 `json:"gpsLat,omitempty"`
	GPSLng       *float64 `json:"gpsLng,omitempty"`
	Width        *int64   `json:"width,omitempty"`
	Height       *int64   `json:"height,omitempty"`
}

// HasGPS returns true when the metadata carries a GPS position.
func (m *Metadata) HasGPS() bool {
	return m.GPSLat != nil || m.GPSLng != nil
}

// rawEntry mirrors the flat key/value JSON ExifTool emits per file.
type rawEntry struct {
	Make             string   `json:"Make"`
	Model            string   `json:"Model"`
	LensModel        string   `json:"LensModel"`
	Lens             string   `json:"Lens"`
	LensInfo         string   `json:"LensInfo"`
	DateTimeOriginal string   `json:"DateTimeOriginal"`
	CreateDate       string   `json:"CreateDate"`
	ModifyDate       string   `json:"ModifyDate"`
	ISO              *int64   `json:"ISO"`
	FNumber          *float64 `json:"FNumber"`
	FocalLength      *float64 `json:"FocalLength"`
	ExposureTime     *float64 `json:"ExposureTime"`
	ExposureComp     *float64 `json:"ExposureCompensation"`
	GPSLatitude      *float64 `json:"GPSLatitude"`
	GPSLongitude     *float64 `json:"GPSLongitude"`
	ImageWidth       *int64   `json:"ImageWidth"`
	ImageHeight      *int64   `json:"ImageHeight"`
}

// Client wraps a resolved ExifTool binary.
type Client struct {
	binPath string
}

// New resolves the ExifTool binary. An explicit path wins; otherwise
// PATH is searched. A missing binary is a configuration error and is
// surfaced before any import work is dispatched.
func New(binPath string) (*Client, error) {
	if binPath == "" {
		resolved, err := exec.LookPath("exiftool")
		if err != nil {
			return nil, fmt.Errorf("exiftool not found in PATH: %w", err)
		}
		binPath = resolved
	} else if _, err := os.Stat(binPath); err != nil {
		return nil, fmt.Errorf("exiftool binary not accessible at %s: %w", binPath, err)
	}
	logging.Debug("Using exiftool: %s", binPath)
	return &Client{binPath: binPath}, nil
}

// ReadMetadata runs ExifTool against a single file and maps its JSON
// output. Unparseable files yield empty metadata.
func (c *Client) ReadMetadata(filePath string) (*Metadata, error) {
	cmd := exec.Command(c.binPath, "-json", "-n", filePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// ExifTool exits non-zero for files it cannot parse; treat
		// that as empty metadata per the import failure policy.
		logging.Debug("exiftool failed for %s: %v (%s)", filePath, err, strings.TrimSpace(stderr.String()))
		return &Metadata{}, nil
	}

	var entries []rawEntry
	if err := json.Unmarshal(stdout.Bytes(), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse exiftool output for %s: %w", filePath, err)
	}
	if len(entries) == 0 {
		return &Metadata{}, nil
	}

	return mapEntry(entries[0]), nil
}

// ExtractPreview writes the embedded preview of a raw file to outPath.
// Returns false without error when the file carries no preview or does
// not need one (directly decodable formats).
func (c *Client) ExtractPreview(filePath, outPath string) (bool, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
		return false, nil
	}

	cmd := exec.Command(c.binPath, "-b", "-PreviewImage", "-JpgFromRaw", "-BigImage", filePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil || stdout.Len() == 0 {
		return false, nil
	}

	if err := os.WriteFile(outPath, stdout.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("failed to write preview %s: %w", outPath, err)
	}
	return true, nil
}

func mapEntry(e rawEntry) *Metadata {
	m := &Metadata{
		ISO:          e.ISO,
		FNumber:      e.FNumber,
		FocalLength:  e.FocalLength,
		ExposureTime: e.ExposureTime,
		ExposureComp: e.ExposureComp,
		GPSLat:       e.GPSLatitude,
		GPSLng:       e.GPSLongitude,
		Width:        e.ImageWidth,
		Height:       e.ImageHeight,
	}
	if e.Make != "" {
		m.Make = &e.Make
	}
	if e.Model != "" {
		m.Model = &e.Model
	}
	if lens := firstNonEmpty(e.LensModel, e.Lens, e.LensInfo); lens != "" {
		m.Lens = &lens
	}
	if ts := parseDateTime(firstNonEmpty(e.DateTimeOriginal, e.CreateDate, e.ModifyDate)); ts != nil {
		m.DateTaken = ts
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDateTime accepts the two timestamp layouts ExifTool emits.
func parseDateTime(s string) *int64 {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006:01:02 15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			unix := t.Unix()
			return &unix
		}
	}
	return nil
}
