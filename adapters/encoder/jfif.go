package encoder

import (
	"encoding/binary"
	"errors"
)

// Pure-byte JPEG post-passes. The standard library encoder gives us no
// control over the JFIF header or extra application segments, so density
// metadata and the ICC profile are spliced into the encoded stream by
// rewriting its leading marker segments.

var errNotJPEG = errors.New("not a JPEG stream")

// app0JFIF is a complete APP0/JFIF segment with dots-per-inch units and
// placeholder density values.
var app0JFIF = []byte{
	0xFF, 0xE0, // APP0 marker
	0x00, 0x10, // length: 16 byte payload including these two bytes
	'J', 'F', 'I', 'F', 0x00, // identifier
	0x01, 0x01, // version 1.01
	0x01,       // density units: dots per inch
	0x00, 0x01, // horizontal density
	0x00, 0x01, // vertical density
	0x00, // thumbnail width
	0x00, // thumbnail height
}

// iccHeader prefixes every APP2 ICC chunk payload.
const iccHeader = "ICC_PROFILE\x00"

// maxICCChunk is the largest profile slice per APP2 segment: 65535 max
// segment length, minus 2 length bytes, 12 header bytes, and 2 chunk
// sequence bytes.
const maxICCChunk = 65535 - 2 - len(iccHeader) - 2

// WithDensity returns data with its JFIF APP0 density fields set to dpi on
// both axes. When the stream has no APP0 as its first segment (some encoders
// emit EXIF-only JPEGs) a fresh one is inserted right after SOI, which is
// where JFIF requires it.
func WithDensity(data []byte, dpi int) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNotJPEG
	}
	d := uint16(dpi)

	// First segment is APP0/JFIF: patch units and density in place.
	if data[2] == 0xFF && data[3] == 0xE0 && len(data) >= 20 {
		out := make([]byte, len(data))
		copy(out, data)
		out[13] = 0x01 // dots per inch
		binary.BigEndian.PutUint16(out[14:16], d)
		binary.BigEndian.PutUint16(out[16:18], d)
		return out, nil
	}

	seg := make([]byte, len(app0JFIF))
	copy(seg, app0JFIF)
	binary.BigEndian.PutUint16(seg[12:14], d)
	binary.BigEndian.PutUint16(seg[14:16], d)

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	out = append(out, data[2:]...)
	return out, nil
}

// WithICC returns data with profile embedded as APP2 ICC_PROFILE segments
// placed after the APP0 header. Large profiles are split into
// sequence-numbered chunks per the ICC-in-JPEG convention. A nil or empty
// profile returns data unchanged.
func WithICC(data []byte, profile []byte) ([]byte, error) {
	if len(profile) == 0 {
		return data, nil
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNotJPEG
	}

	// Insert after the APP0 segment when present, else right after SOI.
	insert := 2
	if data[2] == 0xFF && data[3] == 0xE0 && len(data) >= 6 {
		segLen := int(binary.BigEndian.Uint16(data[4:6]))
		if 2+2+segLen <= len(data) {
			insert = 2 + 2 + segLen
		}
	}

	count := (len(profile) + maxICCChunk - 1) / maxICCChunk
	if count > 255 {
		return nil, errors.New("ICC profile too large to embed")
	}

	var segs []byte
	for i := 0; i < count; i++ {
		chunk := profile[i*maxICCChunk:]
		if len(chunk) > maxICCChunk {
			chunk = chunk[:maxICCChunk]
		}
		payloadLen := 2 + len(iccHeader) + 2 + len(chunk)
		segs = append(segs, 0xFF, 0xE2)
		segs = binary.BigEndian.AppendUint16(segs, uint16(payloadLen))
		segs = append(segs, iccHeader...)
		segs = append(segs, byte(i+1), byte(count))
		segs = append(segs, chunk...)
	}

	out := make([]byte, 0, len(data)+len(segs))
	out = append(out, data[:insert]...)
	out = append(out, segs...)
	out = append(out, data[insert:]...)
	return out, nil
}

// ReadDensity parses the JFIF APP0 density of a JPEG stream. It returns
// 0, 0 when the stream carries no APP0 or uses aspect-ratio-only units.
// Used by tests and by print software sanity checks.
func ReadDensity(data []byte) (xDPI, yDPI int) {
	if len(data) < 20 || data[0] != 0xFF || data[1] != 0xD8 ||
		data[2] != 0xFF || data[3] != 0xE0 {
		return 0, 0
	}
	if data[13] != 0x01 { // only dots-per-inch units are meaningful here
		return 0, 0
	}
	return int(binary.BigEndian.Uint16(data[14:16])),
		int(binary.BigEndian.Uint16(data[16:18]))
}
