// Package encoder serialises composited canvases to print-ready JPEG bytes.
package encoder

import (
	"bytes"
	"context"
	"image/jpeg"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
)

// JPEG encodes images to JPEG with JFIF density metadata and optional ICC
// profile round-trip. The standard library encoder emits baseline scans;
// true progressive output requires the vips backend. No EXIF segment is ever
// written, so the output carries no orientation tag — the canvas is already
// upright and a tag would double-rotate in viewers that honor it.
type JPEG struct {
	DefaultQuality int // used when EncodeOptions.Quality == 0
}

func NewJPEG(defaultQuality int) *JPEG {
	if defaultQuality <= 0 {
		defaultQuality = 95
	}
	return &JPEG{DefaultQuality: defaultQuality}
}

func (j *JPEG) CanEncode(format core.Format) bool {
	return format == core.FormatJPEG
}

func (j *JPEG) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpeg.encode", err)
	}

	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "jpeg.encode", apperrors.ErrEmptyInput)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = j.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpeg.encode", err)
	}
	data := buf.Bytes()

	if opts.DPI > 0 {
		var err error
		data, err = WithDensity(data, opts.DPI)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpeg.encode.density", err)
		}
	}
	if len(opts.ICCProfile) > 0 {
		var err error
		data, err = WithICC(data, opts.ICCProfile)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpeg.encode.icc", err)
		}
	}
	return data, nil
}
