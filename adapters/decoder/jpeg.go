// Package decoder provides format-specific image decoders.
package decoder

import (
	"context"
	"image"
	"image/jpeg"
	"io"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
	"github.com/borelg/10x15cm-Photo-Formatter/utils"
)

// JPEG decodes JPEG images using the standard library and extracts the EXIF
// orientation tag and any embedded ICC profile for round-trip.
type JPEG struct{}

// NewJPEG returns an initialised JPEG decoder.
func NewJPEG() *JPEG { return &JPEG{} }

func (j *JPEG) CanDecode(format core.Format) bool {
	return format == core.FormatJPEG
}

func (j *JPEG) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}

	// Buffer the reader: the same bytes feed pixel decode, EXIF orientation
	// parse, and the ICC profile scan.
	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "jpeg.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	img, err := jpeg.Decode(utils.BytesReader(raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}

	bounds := img.Bounds()
	meta := core.Metadata{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Format:      core.FormatJPEG,
		HasAlpha:    hasAlpha(img),
		Orientation: orient.FromReader(utils.BytesReader(raw)),
		ICCProfile:  ExtractICC(raw),
	}

	return &core.ImageData{
		Image:  img,
		Format: core.FormatJPEG,
		Meta:   meta,
	}, nil
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}
