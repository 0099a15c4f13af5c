package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/raster"
)

// Failure kinds recorded on JobResults. Raster and geometry kinds map to the
// backend and compositor sentinels; the rest are produced by the pool itself.
const (
	KindRasterUnavailable = "raster_unavailable"
	KindRasterCorrupt     = "raster_corrupt"
	KindInvalidGeometry   = "invalid_geometry"
	KindWriteFailure      = "write_failure"
	KindTimeout           = "timeout"
	KindCancelled         = "cancelled"
	KindUnknown           = "unknown"
)

// WriteError marks a failed output write. The destination path is kept for
// the report.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Classify maps a job error onto a failure kind for reporting.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var we *WriteError
	switch {
	case errors.As(err, &we):
		return KindWriteFailure
	case errors.Is(err, raster.ErrUnavailable):
		return KindRasterUnavailable
	case errors.Is(err, raster.ErrCorrupt):
		return KindRasterCorrupt
	case errors.Is(err, compositor.ErrInvalidGeometry):
		return KindInvalidGeometry
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return KindTimeout
	}
	return KindUnknown
}
