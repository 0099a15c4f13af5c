package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/raster"
	"github.com/local/pagecomposer/internal/report"
)

// fakeProc fails the jobs whose index is in failAt and counts how often each
// job was claimed.
type fakeProc struct {
	failAt map[int]error
	delay  time.Duration
	mu     sync.Mutex
	claims map[int]int
}

func newFakeProc() *fakeProc {
	return &fakeProc{failAt: map[int]error{}, claims: map[int]int{}}
}

func (f *fakeProc) Process(ctx context.Context, job Job) (string, bool, error) {
	f.mu.Lock()
	f.claims[job.Index]++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if err, ok := f.failAt[job.Index]; ok {
		return "", false, err
	}
	return job.Output, false, nil
}

func makeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			Index:   i,
			A:       PageRef{Path: fmt.Sprintf("doc%d.pdf", i), Page: 0},
			Output:  fmt.Sprintf("out/%d.pdf", i),
			Options: compositor.DefaultOptions(),
		}
	}
	return jobs
}

func TestPoolFaultIsolation(t *testing.T) {
	const total = 8
	proc := newFakeProc()
	proc.failAt[3] = fmt.Errorf("rasterize: %w", raster.ErrCorrupt)

	pool, err := NewPool(proc, 4)
	if err != nil {
		t.Fatal(err)
	}
	b := pool.Run(context.Background(), makeJobs(total))

	if b.Succeeded != total-1 || b.Failed != 1 {
		t.Fatalf("counts = %d/%d, want %d succeeded 1 failed", b.Succeeded, b.Failed, total-1)
	}
	// The failed entry sits at its submission index.
	if b.Results[3].Status != report.StatusFailed || b.Results[3].Kind != KindRasterCorrupt {
		t.Errorf("result[3] = %+v, want failed raster_corrupt", b.Results[3])
	}
	for i, r := range b.Results {
		if r.Index != i {
			t.Errorf("result %d carries index %d", i, r.Index)
		}
	}
}

func TestPoolAllFailuresStillCompletes(t *testing.T) {
	const total = 5
	proc := newFakeProc()
	for i := 0; i < total; i++ {
		proc.failAt[i] = fmt.Errorf("rasterize: %w", raster.ErrCorrupt)
	}
	pool, err := NewPool(proc, 2)
	if err != nil {
		t.Fatal(err)
	}
	b := pool.Run(context.Background(), makeJobs(total))
	if b.Succeeded != 0 || b.Failed != total {
		t.Errorf("counts = %d/%d, want 0/%d", b.Succeeded, b.Failed, total)
	}
	if b.Outcome() != "all_failed" {
		t.Errorf("outcome = %q, want all_failed", b.Outcome())
	}
}

func TestPoolNoDoubleClaims(t *testing.T) {
	const total = 50
	proc := newFakeProc()
	pool, err := NewPool(proc, 8)
	if err != nil {
		t.Fatal(err)
	}
	b := pool.Run(context.Background(), makeJobs(total))
	if b.Succeeded != total {
		t.Fatalf("succeeded = %d, want %d", b.Succeeded, total)
	}
	for i := 0; i < total; i++ {
		if proc.claims[i] != 1 {
			t.Errorf("job %d claimed %d times", i, proc.claims[i])
		}
	}
}

func TestPoolWorkerCountValidation(t *testing.T) {
	if _, err := NewPool(newFakeProc(), -1); err == nil {
		t.Error("negative worker count accepted")
	}
	p, err := NewPool(newFakeProc(), 0)
	if err != nil {
		t.Fatalf("default worker count rejected: %v", err)
	}
	if p.workers < 1 {
		t.Errorf("default workers = %d", p.workers)
	}
}

func TestPoolCancellation(t *testing.T) {
	const total = 20
	proc := newFakeProc()
	proc.delay = 50 * time.Millisecond

	var done atomic.Int32
	pool, err := NewPool(proc, 2, WithOnResult(func(report.JobResult) { done.Add(1) }))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()
	b := pool.Run(ctx, makeJobs(total))

	if got := len(b.Results); got != total {
		t.Fatalf("results = %d, want one per job", got)
	}
	if b.Cancelled == 0 {
		t.Error("expected cancelled results after mid-batch cancel")
	}
	if b.Succeeded == 0 {
		t.Error("jobs finished before the cancel should still report success")
	}
	if int(done.Load()) != total {
		t.Errorf("onResult saw %d results, want %d", done.Load(), total)
	}
	if b.Outcome() != "cancelled" {
		t.Errorf("outcome = %q, want cancelled", b.Outcome())
	}
}

func TestPoolPerJobTimeout(t *testing.T) {
	proc := newFakeProc()
	proc.delay = 200 * time.Millisecond

	pool, err := NewPool(proc, 1)
	if err != nil {
		t.Fatal(err)
	}
	jobs := makeJobs(1)
	jobs[0].Timeout = 20 * time.Millisecond
	b := pool.Run(context.Background(), jobs)

	r := b.Results[0]
	if r.Status != report.StatusFailed || r.Kind != KindTimeout {
		t.Errorf("result = %+v, want failed/timeout", r)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", raster.ErrUnavailable), KindRasterUnavailable},
		{fmt.Errorf("x: %w", raster.ErrCorrupt), KindRasterCorrupt},
		{compositor.ErrInvalidGeometry, KindInvalidGeometry},
		{&WriteError{Path: "out.pdf", Err: errors.New("disk full")}, KindWriteFailure},
		{context.DeadlineExceeded, KindTimeout},
		{context.Canceled, KindCancelled},
		{errors.New("mystery"), KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
