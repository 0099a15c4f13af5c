package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/dispatcher"
	"github.com/local/pagecomposer/internal/raster"
)

// fakeRaster returns fixed-size solid pages keyed by page number.
type fakeRaster struct {
	w, h     int
	degraded bool
	failPage int
	calls    int
}

func (f *fakeRaster) Rasterize(_ context.Context, _ string, page, dpi int) (raster.Image, error) {
	f.calls++
	if page == f.failPage && f.failPage > 0 {
		return raster.Image{}, fmt.Errorf("page %d: %w", page, raster.ErrCorrupt)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, f.w, f.h))
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			rgba.Set(x, y, color.RGBA{R: uint8(40 * page), G: 120, B: 200, A: 255})
		}
	}
	return raster.Image{RGBA: rgba, Width: f.w, Height: f.h, DPI: dpi, Degraded: f.degraded, Backend: "fake"}, nil
}

func pairJob(t *testing.T, dir string) dispatcher.Job {
	t.Helper()
	return dispatcher.Job{
		Index:   0,
		A:       dispatcher.PageRef{Path: "in.pdf", Page: 0},
		B:       &dispatcher.PageRef{Path: "in.pdf", Page: 1},
		Output:  filepath.Join(dir, "out_merged_001.png"),
		Options: compositor.DefaultOptions(),
	}
}

func TestProcessWritesPairOutput(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeRaster{w: 600, h: 800}
	p := New(fake)

	job := pairJob(t, dir)
	out, degraded, err := p.Process(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if out != job.Output || degraded {
		t.Errorf("got %q degraded=%v", out, degraded)
	}
	if fake.calls != 2 {
		t.Errorf("rasterized %d pages, want 2", fake.calls)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	// Equal page heights: canvas is 2h by h.
	if img.Bounds().Dx() != 1600 || img.Bounds().Dy() != 800 {
		t.Errorf("canvas = %v, want 1600x800", img.Bounds())
	}
}

func TestProcessSinglePage(t *testing.T) {
	dir := t.TempDir()
	p := New(&fakeRaster{w: 600, h: 800})

	job := pairJob(t, dir)
	job.B = nil
	out, _, err := p.Process(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestProcessQuad(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeRaster{w: 600, h: 800}
	p := New(fake)

	job := pairJob(t, dir)
	job.Extra = []dispatcher.PageRef{
		{Path: "in.pdf", Page: 2},
		{Path: "in.pdf", Page: 3},
	}
	if _, _, err := p.Process(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 4 {
		t.Errorf("rasterized %d pages, want 4", fake.calls)
	}
}

func TestProcessPropagatesDegraded(t *testing.T) {
	dir := t.TempDir()
	p := New(&fakeRaster{w: 600, h: 800, degraded: true})

	_, degraded, err := p.Process(context.Background(), pairJob(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	if !degraded {
		t.Error("fallback raster did not mark the result degraded")
	}
}

func TestProcessRasterFailure(t *testing.T) {
	dir := t.TempDir()
	p := New(&fakeRaster{w: 600, h: 800, failPage: 1})

	_, _, err := p.Process(context.Background(), pairJob(t, dir))
	if !errors.Is(err, raster.ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("failed job left %d files behind", len(entries))
	}
}

func TestProcessWriteFailure(t *testing.T) {
	p := New(&fakeRaster{w: 600, h: 800})
	job := pairJob(t, t.TempDir())
	job.Output = filepath.Join(string(os.PathSeparator), "dev", "null", "nope", "out.png")

	_, _, err := p.Process(context.Background(), job)
	var we *dispatcher.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("err = %v, want WriteError", err)
	}
	if dispatcher.Classify(err) != dispatcher.KindWriteFailure {
		t.Errorf("kind = %q, want write_failure", dispatcher.Classify(err))
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	p := New(&fakeRaster{w: 600, h: 800})
	job := pairJob(t, t.TempDir())
	job.Output = job.Output[:len(job.Output)-4] + ".bmp"

	_, _, err := p.Process(context.Background(), job)
	if dispatcher.Classify(err) != dispatcher.KindWriteFailure {
		t.Fatalf("err = %v, want write_failure", err)
	}
}
