package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/borelg/10x15cm-Photo-Formatter/adapters/encoder"
	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/layout"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
)

func opaqueImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, opaqueImage(w, h, color.NRGBA{R: 255, A: 255}), nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// ── Decode ────────────────────────────────────────────────────────────────────

func TestDecodeStep_UnknownFormat(t *testing.T) {
	step := &DecodeStep{Registry: core.NewRegistry()}
	_, err := step.Execute(context.Background(), &core.ImageData{
		Data:   []byte("definitely not an image"),
		Format: core.FormatUnknown,
	})
	if !apperrors.IsCategory(err, apperrors.CategoryUnsupported) {
		t.Fatalf("want unsupported category, got %v", err)
	}
}

func TestDecodeStep_HEIFWithoutBackend(t *testing.T) {
	step := &DecodeStep{Registry: core.NewRegistry()}
	_, err := step.Execute(context.Background(), &core.ImageData{
		Data:   []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c'},
		Format: core.FormatHEIF,
	})
	if !errors.Is(err, apperrors.ErrHEIFUnavailable) {
		t.Fatalf("want ErrHEIFUnavailable, got %v", err)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryUnsupported) {
		t.Fatalf("want unsupported category, got %v", err)
	}
}

func TestDecodeStep_EmptyInput(t *testing.T) {
	step := &DecodeStep{Registry: core.NewRegistry()}
	_, err := step.Execute(context.Background(), &core.ImageData{})
	if !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Fatalf("want ErrEmptyInput, got %v", err)
	}
}

// ── Orient ────────────────────────────────────────────────────────────────────

func TestOrientStep_SwapsDimensions(t *testing.T) {
	img := &core.ImageData{
		Image: opaqueImage(100, 50, color.White),
		Meta: core.Metadata{
			Width:       100,
			Height:      50,
			Orientation: orient.RightTop, // 90° CW stored rotation
		},
	}
	out, err := (&OrientStep{}).Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("orient: %v", err)
	}
	if out.Meta.Width != 50 || out.Meta.Height != 100 {
		t.Errorf("dims = %dx%d, want 50x100", out.Meta.Width, out.Meta.Height)
	}
	if out.Meta.Orientation != orient.TopLeft {
		t.Errorf("orientation not reset: %v", out.Meta.Orientation)
	}
	b := out.Image.Bounds()
	if b.Dx() != 50 || b.Dy() != 100 {
		t.Errorf("buffer = %dx%d, want 50x100", b.Dx(), b.Dy())
	}
}

func TestOrientStep_TopLeftIsNoop(t *testing.T) {
	src := opaqueImage(10, 20, color.White)
	img := &core.ImageData{
		Image: src,
		Meta:  core.Metadata{Width: 10, Height: 20, Orientation: orient.TopLeft},
	}
	out, err := (&OrientStep{}).Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("orient: %v", err)
	}
	if out.Image != src {
		t.Error("upright image should pass through untouched")
	}
}

// ── Plan ──────────────────────────────────────────────────────────────────────

func TestPlanStep_LandscapeReference(t *testing.T) {
	// 4000x3000 at 300 DPI onto 10x15cm.
	step := &PlanStep{Physical: layout.Standard10x15, DPI: 300, Policy: layout.PolicyFit}
	img := &core.ImageData{Meta: core.Metadata{Width: 4000, Height: 3000}}

	out, err := step.Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if out.Plan.Width != 1772 || out.Plan.Height != 1181 {
		t.Errorf("canvas = %dx%d, want 1772x1181", out.Plan.Width, out.Plan.Height)
	}
	if !out.Plan.Landscape {
		t.Error("want landscape canvas for wide image")
	}
	if out.Placement.ScaledW != 1575 || out.Placement.ScaledH != 1181 {
		t.Errorf("scaled = %dx%d, want 1575x1181", out.Placement.ScaledW, out.Placement.ScaledH)
	}
	if out.Placement.OffsetX != 98 || out.Placement.OffsetY != 0 {
		t.Errorf("offset = %d,%d, want 98,0", out.Placement.OffsetX, out.Placement.OffsetY)
	}
}

func TestPlanStep_InvalidDimensions(t *testing.T) {
	step := &PlanStep{Physical: layout.Standard10x15, DPI: 300}
	_, err := step.Execute(context.Background(), &core.ImageData{})
	if !errors.Is(err, apperrors.ErrInvalidDimensions) {
		t.Fatalf("want ErrInvalidDimensions, got %v", err)
	}
}

// ── Compose ───────────────────────────────────────────────────────────────────

func planFor(t *testing.T, w, h, dpi int) *core.ImageData {
	t.Helper()
	img := &core.ImageData{Meta: core.Metadata{Width: w, Height: h}}
	step := &PlanStep{Physical: layout.Standard10x15, DPI: dpi, Policy: layout.PolicyFit}
	out, err := step.Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return out
}

func TestComposeStep_CanvasDimensionsAndBorder(t *testing.T) {
	img := planFor(t, 40, 30, 72)
	img.Image = opaqueImage(40, 30, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	out, err := (&ComposeStep{}).Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	b := out.Image.Bounds()
	if b.Dx() != img.Plan.Width || b.Dy() != img.Plan.Height {
		t.Fatalf("canvas = %dx%d, want %dx%d", b.Dx(), b.Dy(), img.Plan.Width, img.Plan.Height)
	}
	if out.Meta.HasAlpha {
		t.Error("output must be opaque")
	}

	// The border above the placed image must be pure white.
	r, g, bl, a := out.Image.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || bl != 0xffff || a != 0xffff {
		t.Errorf("corner = %d,%d,%d,%d, want opaque white", r, g, bl, a)
	}
	// Center pixel lands inside the photo.
	cr, _, _, _ := out.Image.At(img.Plan.Width/2, img.Plan.Height/2).RGBA()
	if cr == 0xffff {
		t.Error("center pixel should come from the photo, not the border")
	}
}

func TestComposeStep_TransparencyFlattensToWhite(t *testing.T) {
	// A fully transparent source must yield an all-white canvas: alpha is
	// blended against the border, never carried into the print.
	img := planFor(t, 20, 20, 72)
	img.Image = image.NewNRGBA(image.Rect(0, 0, 20, 20)) // zero value: transparent
	img.Meta.HasAlpha = true

	out, err := (&ComposeStep{}).Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	b := out.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := out.Image.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || bl != 0xffff || a != 0xffff {
				t.Fatalf("pixel (%d,%d) = %d,%d,%d,%d, want opaque white", x, y, r, g, bl, a)
			}
		}
	}
}

func TestComposeStep_SemiTransparentBlends(t *testing.T) {
	img := planFor(t, 20, 20, 72)
	half := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			half.Set(x, y, color.NRGBA{R: 0, G: 0, B: 0, A: 128})
		}
	}
	img.Image = half
	img.Meta.HasAlpha = true

	out, err := (&ComposeStep{}).Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// 50% black over white lands mid-grey, and stays opaque.
	r, _, _, a := out.Image.At(img.Plan.Width/2, img.Plan.Height/2).RGBA()
	if a != 0xffff {
		t.Errorf("alpha = %d, want opaque", a)
	}
	if r < 0x6000 || r > 0x9fff {
		t.Errorf("blended value = %#x, want mid-grey", r)
	}
}

// ── Encode ────────────────────────────────────────────────────────────────────

func TestEncodeStep_WritesDensity(t *testing.T) {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatJPEG, &encoder.JPEG{})

	img := planFor(t, 40, 30, 72)
	img.Image = opaqueImage(40, 30, color.NRGBA{B: 255, A: 255})
	composed, err := (&ComposeStep{}).Execute(context.Background(), img)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	step := &EncodeStep{Registry: reg, Quality: 95, DPI: 300}
	out, err := step.Execute(context.Background(), composed)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out.Format != core.FormatJPEG || out.Meta.Format != core.FormatJPEG {
		t.Errorf("format = %s/%s, want jpeg", out.Format, out.Meta.Format)
	}
	if int64(len(out.Data)) != out.Meta.SizeBytes {
		t.Errorf("SizeBytes = %d, want %d", out.Meta.SizeBytes, len(out.Data))
	}

	x, y := encoder.ReadDensity(out.Data)
	if x != 300 || y != 300 {
		t.Errorf("density = %dx%d, want 300x300", x, y)
	}

	// Output must decode back to exactly the planned canvas.
	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Bounds().Dx() != img.Plan.Width || decoded.Bounds().Dy() != img.Plan.Height {
		t.Errorf("output = %dx%d, want %dx%d",
			decoded.Bounds().Dx(), decoded.Bounds().Dy(), img.Plan.Width, img.Plan.Height)
	}
}

func TestEncodeStep_CanvasMismatchIsInternal(t *testing.T) {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatJPEG, &encoder.JPEG{})

	img := planFor(t, 40, 30, 72)
	// Deliberately wrong buffer size.
	img.Image = opaqueImage(10, 10, color.White)

	_, err := (&EncodeStep{Registry: reg, DPI: 300}).Execute(context.Background(), img)
	if !errors.Is(err, apperrors.ErrCanvasMismatch) {
		t.Fatalf("want ErrCanvasMismatch, got %v", err)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryInternal) {
		t.Fatalf("want internal category, got %v", err)
	}
}

// ── Pipeline orchestration ────────────────────────────────────────────────────

type failingStep struct {
	calls int
	fail  int // fail this many times before succeeding
}

func (s *failingStep) Name() string { return "flaky" }

func (s *failingStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	s.calls++
	if s.calls <= s.fail {
		return nil, apperrors.Transient("flaky", errors.New("temporary"))
	}
	return img, nil
}

func TestPipeline_RetriesTransientErrors(t *testing.T) {
	step := &failingStep{fail: 2}
	p := New().Use(step).WithRetry(3, 0)

	_, _, err := p.Run(context.Background(), &core.ImageData{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if step.calls != 3 {
		t.Errorf("calls = %d, want 3", step.calls)
	}
}

func TestPipeline_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	step := stepFunc(func(_ context.Context, _ *core.ImageData) (*core.ImageData, error) {
		calls++
		return nil, apperrors.New(apperrors.CategoryDecode, "boom", errors.New("corrupt"))
	})
	p := New().Use(step).WithRetry(3, 0)

	_, _, err := p.Run(context.Background(), &core.ImageData{})
	if err == nil {
		t.Fatal("want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent failure)", calls)
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New().Use(&OrientStep{})
	_, _, err := p.Run(ctx, &core.ImageData{Image: opaqueImage(1, 1, color.White)})
	if err == nil {
		t.Fatal("want error from cancelled context")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryPipeline) {
		t.Errorf("want pipeline category, got %v", err)
	}
}

type stepFunc func(ctx context.Context, img *core.ImageData) (*core.ImageData, error)

func (f stepFunc) Name() string { return "func" }
func (f stepFunc) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	return f(ctx, img)
}

// ── End-to-end step chain ─────────────────────────────────────────────────────

func TestSteps_FullChainFromJPEG(t *testing.T) {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatJPEG, &encoder.JPEG{})

	raw := jpegBytes(t, 400, 300)

	// Simulate what the processor does after sniffing.
	img := &core.ImageData{Data: raw, Format: core.FormatJPEG, OriginalSize: int64(len(raw))}

	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("fixture decode: %v", err)
	}
	img.Image = decoded
	img.Meta = core.Metadata{Width: 400, Height: 300, Format: core.FormatJPEG, Orientation: orient.TopLeft}

	p := New().Use(
		&OrientStep{},
		&PlanStep{Physical: layout.Standard10x15, DPI: 300, Policy: layout.PolicyFit},
		&ComposeStep{},
		&EncodeStep{Registry: reg, Quality: 95, DPI: 300},
	)
	out, timings, err := p.Run(context.Background(), img)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"orient", "plan", "compose", "encode"} {
		if _, ok := timings[name]; !ok {
			t.Errorf("missing timing for step %q", name)
		}
	}
	if out.Plan.Width != 1772 || out.Plan.Height != 1181 {
		t.Errorf("canvas = %dx%d, want 1772x1181", out.Plan.Width, out.Plan.Height)
	}
	if x, y := encoder.ReadDensity(out.Data); x != 300 || y != 300 {
		t.Errorf("density = %dx%d, want 300x300", x, y)
	}
}
