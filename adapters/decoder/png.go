package decoder

import (
	"context"
	"image/png"
	"io"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
)

// PNG decodes PNG images using the standard library. Transparency is kept in
// the buffer for the compositor to flatten against the border color.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanDecode(format core.Format) bool {
	return format == core.FormatPNG
}

func (p *PNG) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "png.decode", err)
	}

	img, err := png.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "png.decode", err)
	}

	bounds := img.Bounds()
	meta := core.Metadata{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Format:      core.FormatPNG,
		HasAlpha:    hasAlpha(img),
		Orientation: orient.TopLeft,
	}

	return &core.ImageData{
		Image:  img,
		Format: core.FormatPNG,
		Meta:   meta,
	}, nil
}
