package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagecomposer/internal/metrics"
	"github.com/local/pagecomposer/internal/report"
)

// Processor executes one job end to end and returns the final output path
// and whether a degraded (fallback) raster went into it.
type Processor interface {
	Process(ctx context.Context, job Job) (output string, degraded bool, err error)
}

// Pool is a bounded worker pool over a job queue. Jobs are disjoint, so the
// only shared state is the queue itself and the result sink. One job's
// failure never stops its siblings; every submitted job yields exactly one
// JobResult.
type Pool struct {
	workers  int
	proc     Processor
	onResult func(report.JobResult)
}

// Option configures a Pool.
type Option func(*Pool)

// WithOnResult installs a hook invoked once per finished job, from worker
// goroutines. The hook must be safe for concurrent use.
func WithOnResult(fn func(report.JobResult)) Option {
	return func(p *Pool) { p.onResult = fn }
}

// NewPool validates the worker count. Zero means one worker per CPU core.
func NewPool(proc Processor, workers int, opts ...Option) (*Pool, error) {
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		return nil, fmt.Errorf("dispatcher: worker count must be >= 1, got %d", workers)
	}
	p := &Pool{workers: workers, proc: proc}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Run processes all jobs and blocks until each has exactly one outcome.
// Cancelling ctx stops unclaimed jobs (they resolve to Cancelled results)
// while claimed jobs finish or abort; the batch still completes with a full
// report.
func (p *Pool) Run(ctx context.Context, jobs []Job) report.Batch {
	start := time.Now()
	jobCh := make(chan Job)
	resCh := make(chan report.JobResult, len(jobs))

	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case jobCh <- j:
			case <-ctx.Done():
				p.emit(resCh, report.JobResult{
					Index:  j.Index,
					Source: j.A.Path,
					Status: report.StatusCancelled,
					Kind:   KindCancelled,
					Error:  "batch cancelled before job started",
				})
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range jobCh {
				p.emit(resCh, p.runJob(ctx, id, j))
			}
		}(w)
	}

	batch := report.Collect(resCh, len(jobs))
	wg.Wait()

	batch.Started = start
	batch.WallClock = time.Since(start)
	metrics.ObserveBatch(batch.Outcome(), batch.WallClock)
	log.Info().
		Int("total", batch.Total).
		Int("succeeded", batch.Succeeded).
		Int("failed", batch.Failed).
		Int("cancelled", batch.Cancelled).
		Dur("wall", batch.WallClock).
		Msg("batch complete")
	return batch
}

func (p *Pool) emit(resCh chan<- report.JobResult, r report.JobResult) {
	metrics.ObserveJob(string(r.Status), r.Elapsed)
	if p.onResult != nil {
		p.onResult(r)
	}
	resCh <- r
}

func (p *Pool) runJob(ctx context.Context, worker int, j Job) report.JobResult {
	metrics.JobStarted()
	defer metrics.JobFinished()

	jctx := ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		jctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, degraded, err := p.proc.Process(jctx, j)
	res := report.JobResult{
		Index:   j.Index,
		Source:  j.A.Path,
		Elapsed: time.Since(start),
	}

	if err != nil {
		kind := Classify(err)
		// A tripped per-job deadline is a Failed/timeout outcome; only a
		// batch-level cancel produces Cancelled.
		if kind == KindCancelled && ctx.Err() == nil {
			kind = KindTimeout
		}
		res.Kind = kind
		res.Error = err.Error()
		if kind == KindCancelled {
			res.Status = report.StatusCancelled
		} else {
			res.Status = report.StatusFailed
		}
		log.Warn().
			Int("worker", worker).
			Int("job", j.Index).
			Str("source", j.A.Path).
			Str("kind", kind).
			Err(err).
			Msg("job failed")
		return res
	}

	res.Status = report.StatusSuccess
	res.Output = out
	res.Degraded = degraded
	log.Debug().
		Int("worker", worker).
		Int("job", j.Index).
		Str("output", out).
		Dur("elapsed", res.Elapsed).
		Msg("job done")
	return res
}
