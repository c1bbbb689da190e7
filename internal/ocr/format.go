package ocr

import (
	"bytes"
	"fmt"
)

// Page image formats the local recognizer can decode.
const (
	FormatPNG  = "image/png"
	FormatJPEG = "image/jpeg"
	FormatTIFF = "image/tiff"
)

// DetectImageFormat identifies a page image from its magic bytes. Callers
// often only know a file as application/octet-stream.
func DetectImageFormat(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return FormatPNG
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return FormatJPEG
	}

	// TIFF: 'I' 'I' 0x2A 0x00 (little-endian) or 'M' 'M' 0x00 0x2A (big-endian)
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return FormatTIFF
	}

	return ""
}

// CheckPageImage rejects inputs the recognizer cannot read, naming PDFs
// explicitly since they must be rasterized first.
func CheckPageImage(data []byte) error {
	if DetectImageFormat(data) != "" {
		return nil
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return fmt.Errorf("PDF input must be rasterized to page images first")
	}
	return fmt.Errorf("unsupported page image format (want PNG, JPEG or TIFF)")
}
