package critical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dualpack/dualpack/internal/engine"
	"github.com/dualpack/dualpack/pkg/logger"
	"github.com/dualpack/dualpack/pkg/types"
)

// DefaultConcurrency bounds parallel extractions when none is configured
const DefaultConcurrency = 4

// ErrJobFailed matches every JobError with errors.Is
var ErrJobFailed = errors.New("critical extraction failed")

// JobError is a single page's extraction failure. It never aborts
// sibling jobs.
type JobError struct {
	Template string
	Source   string
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("critical extraction for %s (%s) failed: %v", e.Template, e.Source, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrJobFailed) match
func (e *JobError) Is(target error) bool {
	return target == ErrJobFailed
}

// JobResult is the outcome of one job
type JobResult struct {
	Job      types.CriticalResourceJob
	Err      *JobError
	Duration time.Duration
}

// OK reports whether the job succeeded
func (r JobResult) OK() bool {
	return r.Err == nil
}

// Runner executes critical jobs with bounded concurrency
type Runner struct {
	extractor   Extractor
	concurrency int
	logger      logger.Logger
	onResult    func(JobResult)
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithConcurrency bounds the number of jobs running at once
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the runner logger
func WithLogger(log logger.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithResultHook is called once per finished job, from the job goroutine
func WithResultHook(fn func(JobResult)) RunnerOption {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// NewRunner creates a runner around an extractor
func NewRunner(extractor Extractor, opts ...RunnerOption) *Runner {
	r := &Runner{
		extractor:   extractor,
		concurrency: DefaultConcurrency,
		logger:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job and returns one result per job, in job order.
// Failures are recorded in the job's own result; other jobs still run.
// A cancelled context marks the remaining jobs as failed.
func (r *Runner) Run(ctx context.Context, jobs []types.CriticalResourceJob) []JobResult {
	results := make([]JobResult, len(jobs))

	// Job goroutines always return nil so the group never cancels siblings.
	group, _ := engine.NewSafeGroup(context.Background(), r.logger)
	group.SetLimit(r.concurrency)

	for i := range jobs {
		i, job := i, jobs[i]
		group.Go(func() error {
			results[i] = r.runOne(ctx, job)
			if r.onResult != nil {
				r.onResult(results[i])
			}
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, job types.CriticalResourceJob) (result JobResult) {
	start := time.Now()
	result.Job = job

	defer func() {
		if p := recover(); p != nil {
			result.Err = &JobError{Template: job.Page.TemplateName, Source: job.Source, Err: fmt.Errorf("panic: %v", p)}
		}
		result.Duration = time.Since(start)
		if result.Err != nil {
			r.logger.Warn("Critical extraction failed",
				logger.WithField("template", job.Page.TemplateName),
				logger.WithError(result.Err.Err))
		} else {
			r.logger.Debug("Critical extraction finished",
				logger.WithField("template", job.Page.TemplateName),
				logger.WithField("dest", job.Destination))
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Err = &JobError{Template: job.Page.TemplateName, Source: job.Source, Err: err}
		return result
	}
	if err := r.extractor.Extract(ctx, job); err != nil {
		result.Err = &JobError{Template: job.Page.TemplateName, Source: job.Source, Err: err}
	}
	return result
}

// Failures returns the failed results
func Failures(results []JobResult) []JobResult {
	var failed []JobResult
	for _, res := range results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Errors joins every job error, or returns nil when all succeeded
func Errors(results []JobResult) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}
