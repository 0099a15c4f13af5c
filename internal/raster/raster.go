package raster

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/local/pagecomposer/internal/metrics"
)

var (
	// ErrUnavailable means no backend could render the page.
	ErrUnavailable = errors.New("raster: backend unavailable")
	// ErrCorrupt means the source page data is unreadable.
	ErrCorrupt = errors.New("raster: page unreadable")
)

// DPI bounds accepted by the primary backend. The fallback renders at its
// own fixed resolution regardless.
const (
	MinDPI     = 100
	MaxDPI     = 300
	DefaultDPI = 200
)

// Image is a rasterized page. Degraded marks output from the fallback
// backend, which does not honor the requested DPI.
type Image struct {
	RGBA     *image.RGBA
	Width    int
	Height   int
	DPI      int
	Degraded bool
	Backend  string
}

// Extent returns the pixel dimensions as floats.
func (i Image) Extent() (w, h float64) {
	return float64(i.Width), float64(i.Height)
}

// Backend renders one document page to a bitmap.
type Backend interface {
	Name() string
	Available() bool
	Rasterize(ctx context.Context, path string, page, dpi int) (Image, error)
}

// Chain probes the primary and fallback backends once and routes every
// rasterize call accordingly. A failed primary call is retried against the
// fallback exactly once.
type Chain struct {
	primary    Backend
	fallback   Backend
	usePrimary bool
}

// NewChain probes both backends. It fails with ErrUnavailable when neither
// can render, which callers must surface once before starting a batch.
func NewChain(primary, fallback Backend) (*Chain, error) {
	c := &Chain{primary: primary, fallback: fallback}
	c.usePrimary = primary != nil && primary.Available()
	if c.usePrimary {
		log.Info().Str("backend", primary.Name()).Msg("raster backend selected")
		return c, nil
	}
	if fallback != nil && fallback.Available() {
		log.Warn().Str("backend", fallback.Name()).Msg("primary raster backend missing; all output will be degraded")
		return c, nil
	}
	return nil, fmt.Errorf("probe found no usable backend: %w", ErrUnavailable)
}

// Select builds the default chain: go-fitz primary, mutool fallback.
func Select() (*Chain, error) {
	return NewChain(NewFitz(), NewMutool())
}

// Degraded reports whether the chain runs on the fallback backend only.
func (c *Chain) Degraded() bool { return !c.usePrimary }

// Rasterize renders one page at the requested DPI.
func (c *Chain) Rasterize(ctx context.Context, path string, page, dpi int) (Image, error) {
	dpi = clampDPI(dpi)
	if c.usePrimary {
		img, err := c.primary.Rasterize(ctx, path, page, dpi)
		if err == nil {
			metrics.IncRasterPage(c.primary.Name(), "success")
			return img, nil
		}
		metrics.IncRasterPage(c.primary.Name(), "error")
		if ctx.Err() != nil {
			return Image{}, err
		}
		if c.fallback == nil || !c.fallback.Available() {
			return Image{}, err
		}
		log.Warn().Err(err).Str("file", path).Int("page", page).Msg("primary raster failed; retrying with fallback")
	}

	img, err := c.fallback.Rasterize(ctx, path, page, dpi)
	if err != nil {
		metrics.IncRasterPage(c.fallback.Name(), "error")
		return Image{}, err
	}
	metrics.IncRasterPage(c.fallback.Name(), "success")
	return img, nil
}

func clampDPI(dpi int) int {
	if dpi < MinDPI {
		return MinDPI
	}
	if dpi > MaxDPI {
		return MaxDPI
	}
	return dpi
}
