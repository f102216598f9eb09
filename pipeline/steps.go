// Package pipeline provides the built-in print-formatting steps.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/layout"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw bytes in img.Data into an image.Image using the
// registry decoder for the sniffed format.
type DecodeStep struct {
	Registry core.Registry
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	dec, ok := s.Registry.DecoderFor(img.Format)
	if !ok {
		err := fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format)
		if img.Format == core.FormatHEIF {
			// HEIF is a known format whose backend may not be compiled in.
			err = fmt.Errorf("%w: %v", apperrors.ErrHEIFUnavailable, img.Format)
		}
		return nil, apperrors.New(apperrors.CategoryUnsupported, s.Name(), err)
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}

	// Preserve the raw bytes alongside the decoded representation.
	decoded.Data = img.Data
	decoded.OriginalSize = img.OriginalSize
	return decoded, nil
}

// ── Orient ────────────────────────────────────────────────────────────────────

// OrientStep applies the EXIF orientation extracted at decode so that the
// pixel buffer is upright and Meta width/height reflect the true visual
// orientation. Runs before planning: the canvas decision depends on upright
// aspect ratio, not storage orientation.
type OrientStep struct{}

func (s *OrientStep) Name() string { return "orient" }

func (s *OrientStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	if img.Meta.Orientation <= orient.TopLeft {
		return img, nil
	}

	upright := orient.Apply(img.Image, img.Meta.Orientation)
	b := upright.Bounds()

	out := *img
	out.Image = upright
	out.Meta.Width = b.Dx()
	out.Meta.Height = b.Dy()
	out.Meta.Orientation = orient.TopLeft
	return &out, nil
}

// ── Plan ──────────────────────────────────────────────────────────────────────

// PlanStep chooses the canvas orientation for the upright image and computes
// the scale-to-fit placement. Pure geometry; no pixels are touched.
type PlanStep struct {
	Physical layout.PhysicalSize
	DPI      int
	Policy   layout.Policy
}

func (s *PlanStep) Name() string { return "plan" }

func (s *PlanStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Meta.Width <= 0 || img.Meta.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}

	plan := layout.PlanCanvas(img.Meta.Width, img.Meta.Height, s.Physical, s.DPI)
	placement := layout.Fit(img.Meta.Width, img.Meta.Height, plan, s.Policy)
	if !layout.Contained(placement, plan) {
		return nil, apperrors.New(apperrors.CategoryInternal, s.Name(),
			fmt.Errorf("placement %+v escapes canvas %+v", placement, plan))
	}

	out := *img
	out.Plan = plan
	out.Placement = placement
	return &out, nil
}

// ── Compose ───────────────────────────────────────────────────────────────────

// ComposeStep resamples the upright image to its placement size and
// composites it centered onto an opaque canvas filled with the border color.
// Sources with an alpha channel are blended src-over against the border;
// opaque sources are blitted. The result always has exactly the planned
// canvas dimensions.
type ComposeStep struct {
	// Border fills the area outside the placed image. Zero value means
	// opaque white, the print default.
	Border color.Color
	// Filter is the resampling filter; defaults to Lanczos, which keeps
	// ringing and aliasing low for photographic content in both directions.
	Filter imaging.ResampleFilter
}

func (s *ComposeStep) Name() string { return "compose" }

func (s *ComposeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	if img.Plan.Width <= 0 || img.Plan.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}

	border := s.Border
	if border == nil {
		border = color.White
	}
	filter := s.Filter
	if filter.Support == 0 {
		filter = imaging.Lanczos
	}

	resized := imaging.Resize(img.Image, img.Placement.ScaledW, img.Placement.ScaledH, filter)
	canvas := imaging.New(img.Plan.Width, img.Plan.Height, border)

	pos := image.Pt(img.Placement.OffsetX, img.Placement.OffsetY)
	var composited *image.NRGBA
	if img.Meta.HasAlpha {
		composited = imaging.Overlay(canvas, resized, pos, 1.0)
	} else {
		composited = imaging.Paste(canvas, resized, pos)
	}

	out := *img
	out.Image = composited
	out.Meta.Width = img.Plan.Width
	out.Meta.Height = img.Plan.Height
	out.Meta.HasAlpha = false
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the composited canvas to JPEG bytes with density
// metadata. The dimension check against the canvas plan is defensive: a
// mismatch means a logic bug upstream, never bad input.
type EncodeStep struct {
	Registry core.Registry
	Quality  int
	DPI      int
	// Progressive requests progressive scans where the encoder supports it.
	Progressive bool
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(), apperrors.ErrEmptyInput)
	}

	b := img.Image.Bounds()
	if b.Dx() != img.Plan.Width || b.Dy() != img.Plan.Height {
		return nil, apperrors.New(apperrors.CategoryInternal, s.Name(),
			fmt.Errorf("%w: buffer %dx%d, plan %dx%d",
				apperrors.ErrCanvasMismatch, b.Dx(), b.Dy(), img.Plan.Width, img.Plan.Height))
	}

	enc, ok := s.Registry.EncoderFor(core.FormatJPEG)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, core.FormatJPEG))
	}

	data, err := enc.Encode(ctx, img, core.EncodeOptions{
		Quality:     s.Quality,
		DPI:         s.DPI,
		Progressive: s.Progressive,
		ICCProfile:  img.Meta.ICCProfile,
	})
	if err != nil {
		return nil, err
	}

	out := *img
	out.Data = data
	out.Format = core.FormatJPEG
	out.Meta.Format = core.FormatJPEG
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}

// ── Filters ───────────────────────────────────────────────────────────────────

// FilterByName maps a configuration name to a resampling filter. Unknown
// names fall back to Lanczos.
func FilterByName(name string) imaging.ResampleFilter {
	switch name {
	case "catmullrom":
		return imaging.CatmullRom
	case "linear":
		return imaging.Linear
	case "box":
		return imaging.Box
	default:
		return imaging.Lanczos
	}
}
