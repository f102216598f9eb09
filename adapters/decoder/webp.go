package decoder

import (
	"context"
	"io"

	chaiwebp "github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
	"github.com/borelg/10x15cm-Photo-Formatter/utils"
)

// WebP decodes WebP images using chai2010/webp (lossless capable), falling
// back to golang.org/x/image/webp for streams the primary decoder rejects.
type WebP struct{}

func NewWebP() *WebP { return &WebP{} }

func (w *WebP) CanDecode(format core.Format) bool {
	return format == core.FormatWebP
}

func (w *WebP) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "webp.decode", err)
	}

	// Buffer the reader so both decoders can see the full stream.
	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "webp.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	img, err := chaiwebp.Decode(utils.BytesReader(raw))
	if err != nil {
		img, err = xwebp.Decode(utils.BytesReader(raw))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "webp.decode", err)
		}
	}

	bounds := img.Bounds()
	meta := core.Metadata{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Format:      core.FormatWebP,
		HasAlpha:    hasAlpha(img),
		Orientation: orient.TopLeft,
	}

	return &core.ImageData{
		Image:  img,
		Format: core.FormatWebP,
		Meta:   meta,
	}, nil
}
