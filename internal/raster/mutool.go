package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// FallbackDPI is the fixed resolution of the mutool backend. Callers must
// not assume the requested DPI was honored on degraded images.
const FallbackDPI = 96

// Mutool shells out to the mutool binary. It is the fallback path: lower,
// fixed quality, but no shared-library dependency.
type Mutool struct {
	once  sync.Once
	avail bool
}

func NewMutool() *Mutool { return &Mutool{} }

func (m *Mutool) Name() string { return "mutool" }

func (m *Mutool) Available() bool {
	m.once.Do(func() {
		_, err := exec.LookPath("mutool")
		m.avail = err == nil
	})
	return m.avail
}

func (m *Mutool) Rasterize(ctx context.Context, path string, page, dpi int) (Image, error) {
	if !m.Available() {
		return Image{}, fmt.Errorf("mutool: %w", ErrUnavailable)
	}

	// mutool pages are 1-based.
	cmd := exec.CommandContext(ctx, "mutool", "draw",
		"-F", "png",
		"-o", "-",
		"-r", strconv.Itoa(FallbackDPI),
		path, strconv.Itoa(page+1))

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Image{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return Image{}, fmt.Errorf("mutool: draw page %d of %s: %s: %w", page+1, path, detail, ErrCorrupt)
	}

	decoded, err := png.Decode(&out)
	if err != nil {
		return Image{}, fmt.Errorf("mutool: decode page %d output: %v: %w", page+1, err, ErrCorrupt)
	}

	b := decoded.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), decoded, b.Min, draw.Src)

	return Image{
		RGBA:     rgba,
		Width:    b.Dx(),
		Height:   b.Dy(),
		DPI:      FallbackDPI,
		Degraded: true,
		Backend:  m.Name(),
	}, nil
}
