package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the final state of one job.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// JobResult is the immutable outcome of one composite job. Index is the
// job's submission position, which fixes its place in the report regardless
// of completion order.
type JobResult struct {
	Index    int           `json:"index"`
	Source   string        `json:"source"`
	Output   string        `json:"output,omitempty"`
	Status   Status        `json:"status"`
	Degraded bool          `json:"degraded,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
}

// Batch aggregates every JobResult of one run, in submission order.
type Batch struct {
	ID           string        `json:"id,omitempty"`
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Cancelled    int           `json:"cancelled"`
	Degraded     int           `json:"degraded"`
	TotalElapsed time.Duration `json:"total_elapsed_ns"`
	WallClock    time.Duration `json:"wall_clock_ns"`
	Started      time.Time     `json:"started"`
	Results      []JobResult   `json:"results"`
}

// Collect drains exactly total results from the stream and rebuilds
// submission order. Every submitted job must report exactly one outcome, so
// Collect blocks until all have.
func Collect(results <-chan JobResult, total int) Batch {
	b := Batch{Total: total, Results: make([]JobResult, total)}
	for i := 0; i < total; i++ {
		r := <-results
		b.Results[r.Index] = r
	}
	for _, r := range b.Results {
		switch r.Status {
		case StatusSuccess:
			b.Succeeded++
		case StatusCancelled:
			b.Cancelled++
		default:
			b.Failed++
		}
		if r.Degraded {
			b.Degraded++
		}
		b.TotalElapsed += r.Elapsed
	}
	return b
}

// AllSucceeded reports whether every job finished successfully.
func (b Batch) AllSucceeded() bool { return b.Total > 0 && b.Succeeded == b.Total }

// Outcome classifies the batch for metrics and exit codes.
func (b Batch) Outcome() string {
	switch {
	case b.Cancelled > 0:
		return "cancelled"
	case b.Total == 0 || b.Succeeded == b.Total:
		return "all_success"
	case b.Succeeded == 0:
		return "all_failed"
	default:
		return "partial"
	}
}

// JSON renders the batch for persistence and the progress API.
func (b Batch) JSON() ([]byte, error) { return json.MarshalIndent(b, "", "  ") }

// Summary renders the human-readable report: one line per job, then totals.
func (b Batch) Summary() string {
	var sb strings.Builder
	for _, r := range b.Results {
		switch r.Status {
		case StatusSuccess:
			note := ""
			if r.Degraded {
				note = " (degraded quality)"
			}
			fmt.Fprintf(&sb, "[%3d] ok      %-40s -> %s%s (%s)\n", r.Index+1, r.Source, r.Output, note, r.Elapsed.Round(time.Millisecond))
		case StatusCancelled:
			fmt.Fprintf(&sb, "[%3d] cancel  %s\n", r.Index+1, r.Source)
		default:
			fmt.Fprintf(&sb, "[%3d] FAILED  %-40s %s: %s\n", r.Index+1, r.Source, r.Kind, r.Error)
		}
	}
	fmt.Fprintf(&sb, "total %d: %d succeeded, %d failed", b.Total, b.Succeeded, b.Failed)
	if b.Cancelled > 0 {
		fmt.Fprintf(&sb, ", %d cancelled", b.Cancelled)
	}
	if b.Degraded > 0 {
		fmt.Fprintf(&sb, ", %d degraded", b.Degraded)
	}
	fmt.Fprintf(&sb, " (jobs %s, wall %s)\n", b.TotalElapsed.Round(time.Millisecond), b.WallClock.Round(time.Millisecond))
	return sb.String()
}
