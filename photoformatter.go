// Package photoformatter converts arbitrary photos into print-ready 10x15cm
// JPEGs. Images are never cropped: each photo is scaled to fit a canvas whose
// orientation follows the photo, centered, and padded with white borders, and
// the output carries the DPI density metadata print services read to size the
// paper.
package photoformatter

import (
	"context"
	"io"

	"github.com/borelg/10x15cm-Photo-Formatter/adapters/decoder"
	"github.com/borelg/10x15cm-Photo-Formatter/adapters/encoder"
	"github.com/borelg/10x15cm-Photo-Formatter/batch"
	"github.com/borelg/10x15cm-Photo-Formatter/config"
	"github.com/borelg/10x15cm-Photo-Formatter/core"
	"github.com/borelg/10x15cm-Photo-Formatter/pipeline"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	WebP = core.FormatWebP
	HEIF = core.FormatHEIF
)

// DefaultConfig returns a sensible production configuration: 300 DPI,
// 10x15cm, quality 95, fit policy with upscaling.
func DefaultConfig() config.Config { return config.Default() }

// Formatter is the primary entry point.
type Formatter struct {
	inner *core.Processor
	reg   *core.DefaultRegistry
	cfg   config.Config
}

// New creates a fully wired Formatter with the pure-Go JPEG, PNG, and WebP
// decoders and the JPEG encoder registered. HEIC/HEIF input needs the
// optional vips backend registered on top (see adapters/vips).
func New(cfg config.Config) (*Formatter, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.Quality))

	return &Formatter{inner: core.New(cfg, reg), reg: reg, cfg: cfg}, nil
}

// SetLogger attaches a structured logger.
func (f *Formatter) SetLogger(l core.Logger) { f.inner.SetLogger(l) }

// SetMetrics attaches a metrics collector.
func (f *Formatter) SetMetrics(m core.MetricsCollector) { f.inner.SetMetrics(m) }

// AddHook registers an observer for pipeline step events.
func (f *Formatter) AddHook(h core.Hook) { f.inner.AddHook(h) }

// RegisterDecoder registers a custom decoder for the given format.
func (f *Formatter) RegisterDecoder(fm core.Format, d core.Decoder) { f.reg.RegisterDecoder(fm, d) }

// RegisterEncoder registers a custom encoder for the given format.
func (f *Formatter) RegisterEncoder(fm core.Format, e core.Encoder) { f.reg.RegisterEncoder(fm, e) }

// Registry returns the codec registry, e.g. for wiring the vips backend.
func (f *Formatter) Registry() *core.DefaultRegistry { return f.reg }

// Start starts the background worker pool.
func (f *Formatter) Start() { f.inner.Start() }

// Stop drains and shuts down the worker pool.
func (f *Formatter) Stop() { f.inner.Stop() }

// Steps returns the standard print-formatting pipeline derived from the
// configuration: decode, orient, plan, compose, encode. The returned slice is
// a reusable template; each processed file gets its own ImageData.
func (f *Formatter) Steps() []core.Step {
	return []core.Step{
		&pipeline.DecodeStep{Registry: f.reg},
		&pipeline.OrientStep{},
		&pipeline.PlanStep{Physical: f.cfg.PhysicalSize(), DPI: f.cfg.DPI, Policy: f.cfg.Policy},
		&pipeline.ComposeStep{Filter: pipeline.FilterByName(f.cfg.Resampler)},
		&pipeline.EncodeStep{Registry: f.reg, Quality: f.cfg.Quality, DPI: f.cfg.DPI},
	}
}

// Process runs the standard pipeline on one source and returns the finished
// JPEG in the result's Primary.Data.
func (f *Formatter) Process(ctx context.Context, src core.Source) (*core.ProcessingResult, error) {
	return f.inner.Process(ctx, src, f.Steps()...)
}

// ProcessSteps executes custom steps synchronously.
func (f *Formatter) ProcessSteps(ctx context.Context, src core.Source, steps ...core.Step) (*core.ProcessingResult, error) {
	return f.inner.Process(ctx, src, steps...)
}

// Submit enqueues an async job for the worker pool.
func (f *Formatter) Submit(job core.Job) error { return f.inner.Submit(job) }

// NewRunner creates a batch runner that schedules scanned directories onto
// this formatter's worker pool and writes outputs through store.
func (f *Formatter) NewRunner(store core.StorageAdapter, logger core.Logger) *batch.Runner {
	return batch.NewRunner(f.inner, f.Steps(), store, logger)
}

// NewPipeline creates a reusable, standalone pipeline.
func (f *Formatter) NewPipeline(steps ...core.Step) *pipeline.Pipeline {
	pl := pipeline.New()
	pl.Use(steps...)
	return pl
}

// Stats returns lightweight processing statistics.
func (f *Formatter) Stats() (processed, errors int64) {
	return f.inner.ProcessedCount(), f.inner.ErrorCount()
}

// Inner exposes the underlying core.Processor for advanced use. Prefer the
// high-level API for normal usage.
func (f *Formatter) Inner() *core.Processor { return f.inner }

// ── Source constructors ───────────────────────────────────────────────────────

// FromReader creates a Source from an io.Reader.
func FromReader(r io.Reader) core.Source { return core.Source{Reader: r, Size: -1} }

// FromReaderWithName creates a Source with a logical name and known size.
func FromReaderWithName(r io.Reader, size int64, name string) core.Source {
	return core.Source{Reader: r, Size: size, Name: name}
}
