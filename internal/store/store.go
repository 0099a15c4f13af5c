package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a batch has no recorded status.
var ErrNotFound = errors.New("store: batch not found")

// Batch lifecycle states.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Status is the externally visible progress of one batch.
type Status struct {
	State   string     `json:"state"`
	Done    int        `json:"done"`
	Total   int        `json:"total"`
	Message string     `json:"message,omitempty"`
	Start   *time.Time `json:"start_time,omitempty"`
	End     *time.Time `json:"end_time,omitempty"`
}

// Store persists batch status and the final report JSON. Implementations
// must be safe for concurrent use.
type Store interface {
	SetStatus(ctx context.Context, batchID string, st Status) error
	GetStatus(ctx context.Context, batchID string) (Status, error)
	SetReport(ctx context.Context, batchID string, report []byte) error
	GetReport(ctx context.Context, batchID string) ([]byte, error)
	Close() error
}
