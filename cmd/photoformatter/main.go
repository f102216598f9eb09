// Command photoformatter batch-converts a directory of photos into
// print-ready 10x15cm JPEGs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	photoformatter "github.com/borelg/10x15cm-Photo-Formatter"
	"github.com/borelg/10x15cm-Photo-Formatter/adapters/storage"
	"github.com/borelg/10x15cm-Photo-Formatter/batch"
	"github.com/borelg/10x15cm-Photo-Formatter/config"
	"github.com/borelg/10x15cm-Photo-Formatter/hooks"
	"github.com/borelg/10x15cm-Photo-Formatter/layout"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		inputDir   string
		outputDir  string
		dpi        int
		quality    int
		policy     string
		resampler  string
		workers    int
		overwrite  bool
		watch      bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "photoformatter --in DIR",
		Short: "Convert photos to print-ready 10x15cm JPEGs",
		Long: `photoformatter scans a directory for photos (JPEG, PNG, WebP, and
HEIC/HEIF when built with vips), scales each one to fit a 10x15cm canvas
without cropping, pads it with white borders, and writes JPEGs carrying the
DPI metadata print services use to size the paper.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A .env next to the binary can hold delivery credentials.
			_ = godotenv.Load()

			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("dpi") {
				cfg.DPI = dpi
			}
			if flags.Changed("quality") {
				cfg.Quality = quality
			}
			if flags.Changed("policy") {
				cfg.Policy = layout.Policy(policy)
			}
			if flags.Changed("resampler") {
				cfg.Resampler = resampler
			}
			if flags.Changed("workers") {
				cfg.WorkerCount = workers
			}
			if flags.Changed("out") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			cfg.Overwrite = overwrite
			cfg.Watch = watch
			if inputDir != "" {
				cfg.InputDir = inputDir
			}
			if cfg.InputDir == "" {
				return fmt.Errorf("no input directory; pass --in or set input_dir in the config file")
			}
			if cfg.S3.AccessKeyID == "" {
				cfg.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
				cfg.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
			}

			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVarP(&inputDir, "in", "i", "", "input directory to scan")
	cmd.Flags().StringVarP(&outputDir, "out", "o", "", "output directory (default <in>/"+batch.DefaultOutputDirName+")")
	cmd.Flags().IntVar(&dpi, "dpi", config.DefaultDPI, "print resolution in dots per inch (72-600)")
	cmd.Flags().IntVar(&quality, "quality", config.DefaultQuality, "JPEG quality (1-100)")
	cmd.Flags().StringVar(&policy, "policy", string(layout.PolicyFit), "fit policy: fit or shrink-only")
	cmd.Flags().StringVar(&resampler, "resampler", "lanczos", "resampling filter: lanczos, catmullrom, linear, box")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = number of CPUs)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing outputs instead of numbering them")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and process files as they arrive")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))
	logger := hooks.NewSlogLogger(slogger)

	f, err := photoformatter.New(cfg)
	if err != nil {
		return err
	}
	defer f.Stop()
	f.SetLogger(logger)
	f.AddHook(hooks.NewLoggingHook(logger))

	shutdownVips := registerVips(f, cfg)
	defer shutdownVips()

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(cfg.InputDir, batch.DefaultOutputDirName)
	}
	store, err := storage.NewLocal(outputDir, os.FileMode(cfg.Local.Permissions))
	if err != nil {
		return err
	}

	runner := f.NewRunner(store, logger)
	runner.OnResult(printResult)

	if cfg.Watch {
		fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", cfg.InputDir)
		return runner.Watch(ctx, cfg.InputDir)
	}

	summary, err := runner.Run(ctx, cfg.InputDir)
	if summary != nil {
		fmt.Printf("done: %d converted, %d skipped, %d failed\n",
			summary.OK, summary.Skipped, summary.Failed)
		if err == nil && summary.Failed > 0 {
			err = fmt.Errorf("%d file(s) failed", summary.Failed)
		}
	}
	return err
}

func printResult(res batch.Result) {
	switch res.Status {
	case batch.StatusOK:
		fmt.Printf("  ok      %s -> %s\n", res.Source, res.Output)
	case batch.StatusSkipped:
		fmt.Printf("  skip    %s (%v)\n", res.Source, res.Err)
	default:
		fmt.Printf("  FAILED  %s [%s]: %v\n", res.Source, res.Kind, res.Err)
	}
}

func slogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
