package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/borelg/10x15cm-Photo-Formatter/config"
	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
	"github.com/borelg/10x15cm-Photo-Formatter/utils"
)

// Processor is the central orchestrator. It owns the worker pool the batch
// driver schedules files onto and is safe for concurrent use. Per-file state
// (ImageData, plans, buffers) is owned exclusively by the invocation; the
// only thing shared across files is the immutable configuration.
type Processor struct {
	cfg      config.Config
	registry Registry
	hooks    []Hook
	logger   Logger
	metrics  MetricsCollector

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// New creates a Processor with the given config. Call Start() before
// submitting jobs; call Stop() when done.
func New(cfg config.Config, reg Registry) *Processor {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Processor{
		cfg:      cfg,
		registry: reg,
		jobQueue: make(chan Job, queueSize),
		shutdown: make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) { p.logger = l }

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// AddHook registers a pipeline hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the underlying registry so callers can register codec
// backends after construction.
func (p *Processor) Registry() Registry { return p.registry }

// Config returns the immutable run configuration.
func (p *Processor) Config() config.Config { return p.cfg }

// Start launches the worker pool. It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		workerCount := p.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop shuts down all workers. In-flight files run to completion first;
// cancellation is cooperative at file granularity.
func (p *Processor) Stop() {
	close(p.shutdown)
	p.wg.Wait()
}

// Process is the primary synchronous API. It reads from src, runs steps, and
// returns a ProcessingResult.
func (p *Processor) Process(ctx context.Context, src Source, steps ...Step) (*ProcessingResult, error) {
	if len(steps) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, "process", apperrors.ErrEmptyInput)
	}

	start := time.Now()

	// Drain the source into memory, respecting the max size limit.
	var limitedR = src.Reader
	if p.cfg.MaxImageBytes > 0 {
		limitedR = &utils.LimitedReader{R: src.Reader, Max: p.cfg.MaxImageBytes}
	}

	buf, err := utils.DrainReader(ctx, limitedR, p.cfg.ChunkSize)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "process.drain", err)
	}
	rawBytes := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	// Dispatch on sniffed content, never on extension alone, so mislabeled
	// files reach the right decoder or fail as unsupported.
	format := Format(utils.DetectFormat(rawBytes))

	img := &ImageData{
		Data:         rawBytes,
		Format:       format,
		OriginalSize: int64(len(rawBytes)),
	}

	timings := make(map[string]time.Duration, len(steps))
	current := img
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		p.notifyBefore(ctx, step.Name(), current)
		t := time.Now()
		next, stepErr := p.runWithRetry(ctx, step, current)
		elapsed := time.Since(t)
		timings[step.Name()] = elapsed
		p.notifyAfter(ctx, step.Name(), next, elapsed, stepErr)
		if stepErr != nil {
			atomic.AddInt64(&p.errorCount, 1)
			return nil, stepErr
		}
		current = next
	}

	atomic.AddInt64(&p.processedCount, 1)

	return &ProcessingResult{
		Primary:        current,
		ProcessingTime: time.Since(start),
		StepTimings:    timings,
	}, nil
}

// Submit enqueues an async job. Returns ErrWorkerPoolFull if the queue is full.
func (p *Processor) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
	}
}

// ── worker pool internals ─────────────────────────────────────────────────────

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(job)
		}
	}
}

func (p *Processor) processJob(job Job) {
	ctx := job.Ctx
	timeout := p.cfg.JobTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := p.Process(ctx, job.Source, job.Steps...)
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Result: result, Err: err}
	}
}

func (p *Processor) runWithRetry(ctx context.Context, step Step, img *ImageData) (*ImageData, error) {
	maxRetries := p.cfg.MaxRetries
	delay := p.cfg.RetryDelay

	var (
		result *ImageData
		err    error
	)
	for i := 0; i <= maxRetries; i++ {
		result, err = step.Execute(ctx, img)
		if err == nil || !apperrors.IsRetryable(err) {
			return result, err
		}
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return result, err
}

func (p *Processor) notifyBefore(ctx context.Context, name string, img *ImageData) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, name string, img *ImageData, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, img, d, err)
	}
}

// ProcessedCount returns the total number of successfully processed images.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of processing errors.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
