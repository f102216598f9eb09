package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for per-file reporting and monitoring.
// The batch driver surfaces these directly as the per-file failure kind.
type Category string

const (
	// CategoryUnsupported marks files whose content is not a decodable
	// raster format (mislabeled extensions included).
	CategoryUnsupported Category = "unsupported_format"
	// CategoryDecode marks corrupt or truncated image data.
	CategoryDecode Category = "decode"
	// CategoryEncode marks JPEG serialization failures.
	CategoryEncode Category = "encode"
	// CategoryIO marks filesystem read/write failures.
	CategoryIO Category = "io"
	// CategoryInternal marks defensive-check failures that indicate a logic
	// bug (for example a composited buffer not matching its canvas plan).
	CategoryInternal Category = "internal"
	// CategoryPipeline marks step orchestration failures (cancellation etc.).
	CategoryPipeline Category = "pipeline"
	// CategoryConfig marks invalid configuration.
	CategoryConfig Category = "config"
	// CategoryTransient marks retryable failures.
	CategoryTransient Category = "transient"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError.
func Transient(op string, err error) *ProcessingError {
	return &ProcessingError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or CategoryInternal when err is not
// a ProcessingError. Unclassified errors inside the pipeline are logic bugs.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryInternal
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrCanvasMismatch    = errors.New("composited buffer does not match canvas plan")
	ErrContextCanceled   = errors.New("context canceled")
	ErrWorkerPoolFull    = errors.New("worker pool queue full")
	ErrDestinationExists = errors.New("destination file already exists")
	ErrHEIFUnavailable   = errors.New("HEIC/HEIF support not compiled in")
)
