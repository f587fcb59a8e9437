package phototypes

import (
	"path/filepath"
	"strings"
)

// Format describes how a source file can be decoded.
type Format string

const (
	// FormatImage is a directly decodable raster image.
	FormatImage Format = "image"
	// FormatRaw is a camera raw file; pixels come from the embedded preview.
	FormatRaw Format = "raw"
	// FormatOther is an unsupported file type.
	FormatOther Format = "other"
)

// SortField specifies which photo field query results are sorted by.
type SortField string

// SortOrder specifies the direction of sorting.
type SortOrder string

const (
	// SortByDateTaken sorts by capture date.
	SortByDateTaken SortField = "date_taken"
	// SortByFileName sorts by file name.
	SortByFileName SortField = "file_name"
	// SortByRating sorts by star rating.
	SortByRating SortField = "rating"
	// SortByModified sorts by last cull-state change.
	SortByModified SortField = "last_modified"
	// SortByImported sorts by import time.
	SortByImported SortField = "created_at"

	// SortAsc sorts in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortOrder = "desc"
)

// ImageExtensions maps directly decodable image extensions.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// RawExtensions maps camera raw extensions whose previews are extracted
// with the external metadata tool.
var RawExtensions = map[string]bool{
	".cr2": true,
	".nef": true,
	".arw": true,
	".dng": true,
	".raf": true,
}

// supported extensions for import discovery; raw formats plus the
// formats the decoder handles natively
var importExtensions = func() map[string]bool {
	m := make(map[string]bool, len(ImageExtensions)+len(RawExtensions))
	for ext := range ImageExtensions {
		m[ext] = true
	}
	for ext := range RawExtensions {
		m[ext] = true
	}
	return m
}()

// GetFormat returns the Format for a given file extension.
// The extension should include the leading dot; case is ignored.
func GetFormat(ext string) Format {
	ext = strings.ToLower(ext)
	if ImageExtensions[ext] {
		return FormatImage
	}
	if RawExtensions[ext] {
		return FormatRaw
	}
	return FormatOther
}

// IsImportable returns true if a path has an extension the import
// pipeline accepts.
func IsImportable(path string) bool {
	return importExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsDecodable returns true if a path can be decoded without the
// external preview extraction step.
func IsDecodable(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ResolveSortField maps arbitrary input to a valid sort field,
// defaulting to capture date.
func ResolveSortField(s string) SortField {
	switch SortField(s) {
	case SortByDateTaken, SortByFileName, SortByRating, SortByModified, SortByImported:
		return SortField(s)
	default:
		return SortByDateTaken
	}
}

// ResolveSortOrder maps arbitrary input to a valid sort order,
// defaulting to descending.
func ResolveSortOrder(s string) SortOrder {
	if strings.EqualFold(s, string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}
