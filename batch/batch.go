package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/borelg/10x15cm-Photo-Formatter/config"
	"github.com/borelg/10x15cm-Photo-Formatter/core"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
)

// DefaultOutputDirName is created inside the input directory when no output
// directory is configured.
const DefaultOutputDirName = "output_10x15_jpg"

// OutputSuffix is appended to the source stem for every generated print file.
const OutputSuffix = "_10x15"

// maxCollisionAttempts bounds the numbered-suffix search for a free filename.
const maxCollisionAttempts = 10000

// Status classifies the outcome of one file.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result reports the outcome of a single input file.
type Result struct {
	Source  string
	Output  string // written path, empty unless StatusOK
	Status  Status
	Kind    apperrors.Category // failure kind, empty on success
	Err     error
	Elapsed time.Duration
}

// Summary aggregates a whole run. One Result per scanned file; a failure
// never aborts the run.
type Summary struct {
	OK      int
	Skipped int
	Failed  int
	Results []Result
}

// Runner schedules scanned files onto the processor's worker pool and writes
// finished prints through the storage adapter.
type Runner struct {
	proc   *core.Processor
	steps  []core.Step
	store  core.StorageAdapter
	logger core.Logger
	cfg    config.Config

	// onResult, when set, receives every per-file Result as it completes.
	onResult func(Result)
}

// NewRunner creates a batch Runner. steps is the per-file pipeline template;
// each file gets its own ImageData so the shared template is safe.
func NewRunner(proc *core.Processor, steps []core.Step, store core.StorageAdapter, logger core.Logger) *Runner {
	return &Runner{
		proc:   proc,
		steps:  steps,
		store:  store,
		logger: logger,
		cfg:    proc.Config(),
	}
}

// OnResult registers a callback invoked for every finished file, in
// completion order, from the collecting goroutine.
func (r *Runner) OnResult(fn func(Result)) { r.onResult = fn }

// OutputDir resolves the output directory for the given input directory.
func (r *Runner) OutputDir(inputDir string) string {
	if r.cfg.OutputDir != "" {
		return r.cfg.OutputDir
	}
	return filepath.Join(inputDir, DefaultOutputDirName)
}

// Run scans inputDir, processes every candidate file on the worker pool, and
// returns a Summary. Individual failures are recorded per file; Run itself
// only errors when the scan fails or the context is cancelled before all
// submitted files complete.
func (r *Runner) Run(ctx context.Context, inputDir string) (*Summary, error) {
	outputDir := r.OutputDir(inputDir)

	paths, err := Scan(inputDir, outputDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "batch.scan", err)
	}
	r.logger.Info("batch.start", "input_dir", inputDir, "output_dir", outputDir, "files", len(paths))

	summary := &Summary{}
	if len(paths) == 0 {
		return summary, nil
	}

	r.proc.Start()

	type pending struct {
		path    string
		file    *os.File
		started time.Time
	}
	inflight := make(map[string]pending, len(paths))
	resultCh := make(chan core.JobResult, len(paths))

	submitted := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			// Stop submitting; files already in flight still finish.
			break
		}

		f, err := os.Open(path)
		if err != nil {
			r.emit(summary, Result{Source: path, Status: StatusFailed, Kind: apperrors.CategoryIO, Err: err})
			continue
		}

		job := core.Job{
			ID:       uuid.NewString(),
			Ctx:      ctx,
			Source:   core.Source{Reader: f, Name: filepath.Base(path), Size: -1},
			Steps:    r.steps,
			ResultCh: resultCh,
		}
		inflight[job.ID] = pending{path: path, file: f, started: time.Now()}

		if err := r.submit(ctx, job); err != nil {
			f.Close()
			delete(inflight, job.ID)
			r.emit(summary, Result{Source: path, Status: StatusFailed, Kind: apperrors.CategoryOf(err), Err: err})
			continue
		}
		submitted++
	}

	for i := 0; i < submitted; i++ {
		jr := <-resultCh
		p := inflight[jr.JobID]
		p.file.Close()
		delete(inflight, jr.JobID)
		r.emit(summary, r.finish(ctx, p.path, outputDir, jr, time.Since(p.started)))
	}

	r.logger.Info("batch.done", "ok", summary.OK, "skipped", summary.Skipped, "failed", summary.Failed)

	if err := ctx.Err(); err != nil {
		return summary, apperrors.Wrap(apperrors.CategoryPipeline, "batch.run", err)
	}
	return summary, nil
}

// ProcessFile runs a single file synchronously, bypassing the worker pool.
// Watch mode uses this for files as they arrive.
func (r *Runner) ProcessFile(ctx context.Context, path, outputDir string) Result {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return Result{Source: path, Status: StatusFailed, Kind: apperrors.CategoryIO, Err: err, Elapsed: time.Since(start)}
	}
	defer f.Close()

	src := core.Source{Reader: f, Name: filepath.Base(path), Size: -1}
	res, err := r.proc.Process(ctx, src, r.steps...)
	jr := core.JobResult{Result: res, Err: err}
	return r.finish(ctx, path, outputDir, jr, time.Since(start))
}

// submit enqueues with backpressure: a full queue waits instead of failing
// the file.
func (r *Runner) submit(ctx context.Context, job core.Job) error {
	for {
		err := r.proc.Submit(job)
		if err == nil || !errors.Is(err, apperrors.ErrWorkerPoolFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.CategoryPipeline, "batch.submit", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// finish classifies a job result and, on success, writes the output file.
func (r *Runner) finish(ctx context.Context, path, outputDir string, jr core.JobResult, elapsed time.Duration) Result {
	if jr.Err != nil {
		// HEIC files without a compiled-in backend are reported as skipped,
		// not failed: the file is fine, the build just cannot read it.
		if errors.Is(jr.Err, apperrors.ErrHEIFUnavailable) {
			return Result{Source: path, Status: StatusSkipped, Kind: apperrors.CategoryUnsupported, Err: jr.Err, Elapsed: elapsed}
		}
		return Result{Source: path, Status: StatusFailed, Kind: apperrors.CategoryOf(jr.Err), Err: jr.Err, Elapsed: elapsed}
	}

	out, err := r.writeOutput(ctx, path, outputDir, jr.Result.Primary.Data)
	if err != nil {
		return Result{Source: path, Status: StatusFailed, Kind: apperrors.CategoryOf(err), Err: err, Elapsed: elapsed}
	}
	return Result{Source: path, Output: out, Status: StatusOK, Elapsed: elapsed}
}

// writeOutput stores data under a collision-safe name derived from the source
// stem and returns the chosen path.
func (r *Runner) writeOutput(ctx context.Context, sourcePath, outputDir string, data []byte) (string, error) {
	name, err := r.pickName(ctx, sourcePath, outputDir)
	if err != nil {
		return "", err
	}
	key := core.StorageKey{Path: name}
	if err := r.store.Put(ctx, key, bytes.NewReader(data), nil); err != nil {
		return "", err
	}
	return filepath.Join(outputDir, name), nil
}

// pickName returns "<stem>_10x15.jpg", falling back to "<stem>_10x15_N.jpg"
// when the plain name is taken and overwriting is disabled.
func (r *Runner) pickName(ctx context.Context, sourcePath, outputDir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	name := stem + OutputSuffix + ".jpg"
	if r.cfg.Overwrite {
		return name, nil
	}

	exists, err := r.store.Exists(ctx, core.StorageKey{Path: name})
	if err != nil {
		return "", err
	}
	if !exists {
		return name, nil
	}
	for n := 1; n <= maxCollisionAttempts; n++ {
		candidate := fmt.Sprintf("%s%s_%d.jpg", stem, OutputSuffix, n)
		exists, err := r.store.Exists(ctx, core.StorageKey{Path: candidate})
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperrors.New(apperrors.CategoryIO, "batch.pickname",
		fmt.Errorf("%w: no free name for %s", apperrors.ErrDestinationExists, stem))
}

// Record adds a per-file result to the summary totals.
func (s *Summary) Record(res Result) {
	s.Results = append(s.Results, res)
	switch res.Status {
	case StatusOK:
		s.OK++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

func (r *Runner) emit(summary *Summary, res Result) {
	summary.Record(res)
	r.logResult(res)
	if r.onResult != nil {
		r.onResult(res)
	}
}

func (r *Runner) logResult(res Result) {
	switch res.Status {
	case StatusOK:
		r.logger.Info("batch.file.ok", "source", res.Source, "output", res.Output, "elapsed_ms", res.Elapsed.Milliseconds())
	case StatusSkipped:
		r.logger.Warn("batch.file.skipped", "source", res.Source, "reason", res.Err.Error())
	default:
		r.logger.Error("batch.file.failed", "source", res.Source, "kind", string(res.Kind), "error", res.Err.Error())
	}
}
