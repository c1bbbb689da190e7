package ocr

import "testing"

func TestDetectImageFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, FormatPNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, FormatJPEG},
		{"tiff little-endian", []byte{'I', 'I', 0x2A, 0x00, 0x08}, FormatTIFF},
		{"tiff big-endian", []byte{'M', 'M', 0x00, 0x2A, 0x00}, FormatTIFF},
		{"pdf", []byte("%PDF-1.7"), ""},
		{"too short", []byte{0xFF, 0xD8}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectImageFormat(tt.data); got != tt.want {
				t.Errorf("DetectImageFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckPageImage(t *testing.T) {
	if err := CheckPageImage([]byte{0xFF, 0xD8, 0xFF, 0xE0}); err != nil {
		t.Errorf("jpeg should be accepted: %v", err)
	}
	if err := CheckPageImage([]byte("%PDF-1.4 ...")); err == nil {
		t.Error("pdf should be rejected")
	}
	if err := CheckPageImage([]byte("hello world")); err == nil {
		t.Error("text should be rejected")
	}
}
