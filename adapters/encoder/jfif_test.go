package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/borelg/10x15cm-Photo-Formatter/adapters/decoder"
	"github.com/borelg/10x15cm-Photo-Formatter/core"
)

func encodeGray(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestWithDensity_PatchesExistingAPP0(t *testing.T) {
	// The stdlib encoder emits no APP0, so the first pass inserts one; the
	// second pass must then patch it in place without growing the stream.
	withHeader, err := WithDensity(encodeGray(t, 8, 8), 72)
	if err != nil {
		t.Fatalf("WithDensity insert: %v", err)
	}

	out, err := WithDensity(withHeader, 300)
	if err != nil {
		t.Fatalf("WithDensity patch: %v", err)
	}
	if len(out) != len(withHeader) {
		t.Errorf("in-place patch changed length: %d -> %d", len(withHeader), len(out))
	}
	x, y := ReadDensity(out)
	if x != 300 || y != 300 {
		t.Errorf("density = %d,%d, want 300,300", x, y)
	}

	// Output must still decode.
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("patched stream no longer decodes: %v", err)
	}
}

func TestWithDensity_InsertsAPP0WhenMissing(t *testing.T) {
	// Minimal JPEG-ish stream without APP0: SOI followed by a COM segment.
	raw := []byte{0xFF, 0xD8, 0xFF, 0xFE, 0x00, 0x04, 'h', 'i'}

	out, err := WithDensity(raw, 150)
	if err != nil {
		t.Fatalf("WithDensity: %v", err)
	}
	x, y := ReadDensity(out)
	if x != 150 || y != 150 {
		t.Errorf("density = %d,%d, want 150,150", x, y)
	}
	// Original segments preserved after the inserted APP0.
	if !bytes.HasSuffix(out, raw[2:]) {
		t.Error("original segments lost")
	}
}

func TestWithDensity_RejectsNonJPEG(t *testing.T) {
	if _, err := WithDensity([]byte("PNG..."), 300); err == nil {
		t.Error("expected error for non-JPEG input")
	}
}

func TestWithICC_RoundTrip(t *testing.T) {
	raw := encodeGray(t, 8, 8)
	profile := bytes.Repeat([]byte{0xAB}, 1000)

	out, err := WithICC(raw, profile)
	if err != nil {
		t.Fatalf("WithICC: %v", err)
	}
	got := decoder.ExtractICC(out)
	if !bytes.Equal(got, profile) {
		t.Errorf("extracted profile mismatch: got %d bytes, want %d", len(got), len(profile))
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("stream with ICC no longer decodes: %v", err)
	}
}

func TestWithICC_MultiChunkRoundTrip(t *testing.T) {
	raw := encodeGray(t, 8, 8)
	// Larger than one APP2 segment, forcing chunked embedding.
	profile := make([]byte, maxICCChunk+1234)
	for i := range profile {
		profile[i] = byte(i)
	}

	out, err := WithICC(raw, profile)
	if err != nil {
		t.Fatalf("WithICC: %v", err)
	}
	got := decoder.ExtractICC(out)
	if !bytes.Equal(got, profile) {
		t.Errorf("multi-chunk profile mismatch: got %d bytes, want %d", len(got), len(profile))
	}
}

func TestWithICC_EmptyProfileIsNoop(t *testing.T) {
	raw := encodeGray(t, 8, 8)
	out, err := WithICC(raw, nil)
	if err != nil {
		t.Fatalf("WithICC: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Error("nil profile should leave the stream untouched")
	}
}

func TestJPEGEncoder_DensityAndProfile(t *testing.T) {
	enc := NewJPEG(95)
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.NRGBA{R: 128, G: 20, B: 20, A: 255})
		}
	}
	profile := bytes.Repeat([]byte{0x42}, 64)

	data, err := enc.Encode(context.Background(), &core.ImageData{
		Image:  img,
		Format: core.FormatJPEG,
	}, core.EncodeOptions{Quality: 95, DPI: 300, ICCProfile: profile})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	x, y := ReadDensity(data)
	if x != 300 || y != 300 {
		t.Errorf("density = %d,%d, want 300,300", x, y)
	}
	if got := decoder.ExtractICC(data); !bytes.Equal(got, profile) {
		t.Error("ICC profile not round-tripped")
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Errorf("output dims = %dx%d, want 10x10", b.Dx(), b.Dy())
	}
}

func TestJPEGEncoder_NilImage(t *testing.T) {
	enc := NewJPEG(0)
	if _, err := enc.Encode(context.Background(), &core.ImageData{}, core.EncodeOptions{}); err == nil {
		t.Error("expected error for nil pixel buffer")
	}
}
