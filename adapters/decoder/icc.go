package decoder

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// iccHeader is the APP2 payload prefix that marks an ICC profile chunk.
var iccHeader = []byte("ICC_PROFILE\x00")

// ExtractICC scans a JPEG byte stream for APP2 ICC_PROFILE segments and
// returns the reassembled profile, or nil when none is embedded. Profiles
// larger than one segment are split into sequence-numbered chunks; they are
// stitched back together in order.
func ExtractICC(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil
	}

	type chunk struct {
		seq  int
		data []byte
	}
	var chunks []chunk

	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			break
		}
		marker := data[i+1]
		// Standalone markers without a length field.
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			i += 2
			continue
		}
		// Entropy-coded data follows SOS; no more metadata segments.
		if marker == 0xDA {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if segLen < 2 || i+2+segLen > len(data) {
			break
		}
		payload := data[i+4 : i+2+segLen]
		if marker == 0xE2 && len(payload) > len(iccHeader)+2 && bytes.HasPrefix(payload, iccHeader) {
			seq := int(payload[len(iccHeader)])
			chunks = append(chunks, chunk{seq: seq, data: payload[len(iccHeader)+2:]})
		}
		i += 2 + segLen
	}

	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(a, b int) bool { return chunks[a].seq < chunks[b].seq })
	var out []byte
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out
}
