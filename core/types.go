package core

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/borelg/10x15cm-Photo-Formatter/layout"
	"github.com/borelg/10x15cm-Photo-Formatter/orient"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatHEIF    Format = "heif"
	FormatUnknown Format = "unknown"
)

// Metadata holds information extracted alongside the pixel data.
type Metadata struct {
	Width    int
	Height   int
	Format   Format
	HasAlpha bool

	// Orientation is the EXIF orientation of the raw bytes. The orient step
	// resets it to TopLeft once the pixel buffer has been made upright.
	Orientation orient.Orientation

	// ICCProfile holds the embedded color profile, opaque and uninterpreted,
	// for round-trip into the output. Nil when absent.
	ICCProfile []byte

	SizeBytes int64
}

// ImageData is the in-memory representation passed through a pipeline. Each
// invocation owns its ImageData exclusively; nothing here is shared across
// files.
type ImageData struct {
	// Encoded bytes — raw input before decode, final JPEG after encode.
	Data   []byte
	Format Format

	// Decoded pixel buffer, upright after the orient step.
	Image image.Image

	// Metadata extracted during decode.
	Meta Metadata

	// Print geometry, populated by the plan step.
	Plan      layout.CanvasPlan
	Placement layout.PlacementPlan

	// Size of the original raw input.
	OriginalSize int64
}

// ProcessingResult is returned to the caller after the full pipeline completes.
type ProcessingResult struct {
	Primary *ImageData

	// Observability.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// Source abstracts where raw bytes come from (reader, file path, etc.).
// Format dispatch is by content sniffing, so no content-type hint is carried.
type Source struct {
	Reader io.Reader
	Name   string // optional logical name / filename
	Size   int64  // -1 if unknown
}

// Job encapsulates a single unit of work for the worker pool.
type Job struct {
	ID      string
	Ctx     context.Context //nolint:containedctx // intentional for async jobs
	Source  Source
	Steps   []Step
	Options JobOptions
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobOptions controls per-job behaviour.
type JobOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *ProcessingResult
	Err    error
}

// Step is the fundamental pipeline building block. Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}

// StorageKey uniquely identifies a stored output image.
type StorageKey struct {
	Bucket string
	Path   string
}
