//go:build vips

// Package vips provides an optional libvips-powered codec backend. It is the
// only decoder for HEIC/HEIF input and the only encoder producing true
// progressive JPEG scans; the pure-Go codecs cover everything else. Requires
// CGO and an installed libvips.
package vips

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/borelg/10x15cm-Photo-Formatter/adapters/encoder"
	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
	"github.com/borelg/10x15cm-Photo-Formatter/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend is a unified libvips-powered Decoder and Encoder.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 95
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanDecode(f core.Format) bool {
	switch f {
	case core.FormatHEIF, core.FormatJPEG, core.FormatPNG, core.FormatWebP:
		return true
	}
	return false
}

// Decode loads the stream with libvips, applies the EXIF orientation there
// (libvips knows the HEIF variant of the tag too), and hands the upright
// pixels to the pure-Go pipeline as an image.Image via a lossless PNG hop.
func (b *Backend) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}

	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "vips.decode.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	defer ref.Close()

	format := vipsFormatToCore(ref.Format())

	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.autorotate", err)
	}

	pngBytes, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.reimport", err)
	}

	bounds := img.Bounds()
	meta := core.Metadata{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
		// Already made upright above; the orient step becomes a no-op.
		Orientation: orient.TopLeft,
		HasAlpha:    ref.HasAlpha(),
	}

	return &core.ImageData{
		Data:         raw,
		Format:       format,
		Image:        img,
		Meta:         meta,
		OriginalSize: int64(len(raw)),
	}, nil
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanEncode(f core.Format) bool {
	return f == core.FormatJPEG
}

// Encode produces a progressive JPEG through libvips. Density and ICC
// metadata are spliced in with the same byte-level post-passes the pure-Go
// encoder uses, keeping output metadata identical across backends.
func (b *Backend) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode", apperrors.ErrEmptyInput)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	// Lossless hop into libvips.
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img.Image); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.import", err)
	}
	ref, err := govips.NewImageFromBuffer(pngBuf.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.import", err)
	}
	defer ref.Close()

	ep := govips.NewJpegExportParams()
	ep.Quality = quality
	ep.Interlace = opts.Progressive
	ep.StripMetadata = true // output is upright; an orientation tag would double-rotate
	data, _, err := ref.ExportJpeg(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
	}

	if opts.DPI > 0 {
		data, err = encoder.WithDensity(data, opts.DPI)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.density", err)
		}
	}
	if len(opts.ICCProfile) > 0 {
		data, err = encoder.WithICC(data, opts.ICCProfile)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.icc", err)
		}
	}
	return data, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

// Register wires the backend into a registry: HEIF decoding always, plus
// replacing the JPEG encoder so output gains progressive scans.
func Register(reg core.Registry, b *Backend) {
	reg.RegisterDecoder(core.FormatHEIF, b)
	reg.RegisterEncoder(core.FormatJPEG, b)
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeHEIF:
		return core.FormatHEIF
	default:
		return core.FormatUnknown
	}
}

var (
	_ core.Decoder = (*Backend)(nil)
	_ core.Encoder = (*Backend)(nil)
)
