package utils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	var jpegBuf, pngBuf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := jpeg.Encode(&jpegBuf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatal(err)
	}

	webpHeader := append([]byte("RIFF"), 0, 0, 0, 0)
	webpHeader = append(webpHeader, []byte("WEBPVP8 ")...)

	heicHeader := []byte{0, 0, 0, 24}
	heicHeader = append(heicHeader, []byte("ftypheic")...)
	heicHeader = append(heicHeader, make([]byte, 16)...)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", jpegBuf.Bytes(), "jpeg"},
		{"png", pngBuf.Bytes(), "png"},
		{"webp", webpHeader, "webp"},
		{"heic", heicHeader, "heif"},
		{"heif mif1", append(append([]byte{0, 0, 0, 24}, []byte("ftypmif1")...), make([]byte, 16)...), "heif"},
		{"text", []byte("hello, this is a plain text file"), "unknown"},
		{"empty", nil, "unknown"},
		{"too short", []byte{0xFF}, "unknown"},
		{"non-heif ftyp", append(append([]byte{0, 0, 0, 24}, []byte("ftypmp42")...), make([]byte, 16)...), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.data); got != tt.want {
				t.Errorf("DetectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDrainReader(t *testing.T) {
	const payload = "some streamed image bytes"
	buf, err := DrainReader(context.Background(), strings.NewReader(payload), 4)
	if err != nil {
		t.Fatalf("DrainReader: %v", err)
	}
	defer ReleaseBuffer(buf)
	if buf.String() != payload {
		t.Errorf("got %q, want %q", buf.String(), payload)
	}
}

func TestDrainReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DrainReader(ctx, strings.NewReader("data"), 4)
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestLimitedReader(t *testing.T) {
	r := &LimitedReader{R: strings.NewReader("0123456789"), Max: 5}
	_, err := DrainReader(context.Background(), r, 4)
	if err == nil {
		t.Error("expected error when input exceeds the limit")
	}
}

func TestCloneBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := CloneBytes(src)
	src[0] = 9
	if dst[0] != 1 {
		t.Error("clone shares backing array with source")
	}
}
