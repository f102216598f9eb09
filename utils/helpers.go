package utils

import (
	"bytes"
	"net/http"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatHEIF    = "heif"
	formatUnknown = "unknown"
)

// heifBrands are the ISO BMFF major brands that identify HEIC/HEIF content.
var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heif"), []byte("mif1"), []byte("msf1"),
}

// DetectFormat sniffs the leading bytes of data and returns the image format.
// Dispatch is by content, never by extension, so mislabeled files end up at
// the right decoder or are reported as unsupported.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	// HEIC/HEIF: ISO BMFF "ftyp" box with a HEIF brand.
	if len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")) {
		for _, brand := range heifBrands {
			if bytes.Equal(data[8:12], brand) {
				return formatHEIF
			}
		}
	}
	// Fallback to net/http sniffing.
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/webp":
		return formatWebP
	}
	return formatUnknown
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// BytesReader creates an io.Reader backed by b without allocation.
func BytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
