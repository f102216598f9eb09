// Package config holds the immutable per-run configuration and its defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/borelg/10x15cm-Photo-Formatter/layout"
)

// StorageBackend selects the storage adapter for output delivery.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// DPI limits accepted from the configuration surface.
const (
	MinDPI     = 72
	MaxDPI     = 600
	DefaultDPI = 300
)

// DefaultQuality is the fixed JPEG quality for print output.
const DefaultQuality = 95

// Config is the top-level configuration struct. All fields have safe defaults
// so callers can start with Default() and override only what they need. A
// Config is shared read-only across all workers of a batch run.
type Config struct {
	// Print geometry.
	DPI     int     `yaml:"dpi"`      // 72-600; default 300
	ShortCM float64 `yaml:"short_cm"` // default 10
	LongCM  float64 `yaml:"long_cm"`  // default 15

	// Fit policy: "fit" (default, upscales small sources) or "shrink-only".
	Policy layout.Policy `yaml:"policy"`

	// Resampling filter: lanczos (default), catmullrom, linear, box.
	Resampler string `yaml:"resampler"`

	// JPEG encode quality; fixed at 95 for print output unless overridden.
	Quality int `yaml:"quality"`

	// Batch I/O.
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"` // default <input_dir>/output_10x15_jpg
	Overwrite bool   `yaml:"overwrite"`  // replace existing outputs instead of suffixing
	Watch     bool   `yaml:"watch"`      // keep processing files as they arrive

	// Worker pool controls.
	WorkerCount int           `yaml:"workers"` // default: runtime.NumCPU()
	QueueSize   int           `yaml:"queue_size"`
	JobTimeout  time.Duration `yaml:"job_timeout"`

	// Retry.
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Streaming / memory limits.
	MaxImageBytes int64 `yaml:"max_image_bytes"` // 0 = no limit
	ChunkSize     int   `yaml:"chunk_size"`      // streaming chunk size; default 32 KiB

	// Output delivery.
	Storage StorageBackend `yaml:"storage"`
	Local   LocalConfig    `yaml:"local"`
	S3      S3Config       `yaml:"s3"`

	// Logging.
	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	Permissions uint32 `yaml:"permissions"` // default 0644
}

// S3Config configures an S3-compatible delivery target (print shop upload).
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// PhysicalSize returns the configured target print size.
func (c Config) PhysicalSize() layout.PhysicalSize {
	return layout.PhysicalSize{ShortCM: c.ShortCM, LongCM: c.LongCM}
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		DPI:        DefaultDPI,
		ShortCM:    layout.Standard10x15.ShortCM,
		LongCM:     layout.Standard10x15.LongCM,
		Policy:     layout.PolicyFit,
		Resampler:  "lanczos",
		Quality:    DefaultQuality,
		QueueSize:  256,
		JobTimeout: 2 * time.Minute,
		MaxRetries: 0,
		RetryDelay: 200 * time.Millisecond,
		ChunkSize:  32 * 1024,
		Storage:    StorageLocal,
		LogLevel:   "info",
	}
}

// Load reads a YAML config file and overlays it onto the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DPI < MinDPI || c.DPI > MaxDPI {
		return fmt.Errorf("config: DPI must be between %d and %d", MinDPI, MaxDPI)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return errors.New("config: Quality must be between 1 and 100")
	}
	if c.ShortCM <= 0 || c.LongCM <= 0 {
		return errors.New("config: physical size must be positive")
	}
	if c.ShortCM > c.LongCM {
		return errors.New("config: short_cm must not exceed long_cm")
	}
	if c.Policy != layout.PolicyFit && c.Policy != layout.PolicyShrinkOnly {
		return fmt.Errorf("config: unknown policy %q", c.Policy)
	}
	switch c.Resampler {
	case "lanczos", "catmullrom", "linear", "box":
	default:
		return fmt.Errorf("config: unknown resampler %q", c.Resampler)
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.Storage != StorageLocal && c.Storage != StorageS3 {
		return fmt.Errorf("config: unknown storage backend %q", c.Storage)
	}
	return nil
}
