package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/dispatcher"
	"github.com/local/pagecomposer/internal/raster"
)

// Rasterizer renders one document page to a bitmap. *raster.Chain satisfies
// it; tests substitute a fake.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, page, dpi int) (raster.Image, error)
}

// Pipeline executes one compose job end to end: rasterize the source pages,
// lay them out, paint the canvas and write the output file.
type Pipeline struct {
	raster Rasterizer
}

func New(r Rasterizer) *Pipeline {
	return &Pipeline{raster: r}
}

// Process implements dispatcher.Processor.
func (p *Pipeline) Process(ctx context.Context, job dispatcher.Job) (string, bool, error) {
	pages := make([]raster.Image, 0, 2+len(job.Extra))

	a, err := p.raster.Rasterize(ctx, job.A.Path, job.A.Page, job.Options.DPI)
	if err != nil {
		return "", false, fmt.Errorf("page %d of %s: %w", job.A.Page, job.A.Path, err)
	}
	pages = append(pages, a)

	if job.B != nil {
		b, err := p.raster.Rasterize(ctx, job.B.Path, job.B.Page, job.Options.DPI)
		if err != nil {
			return "", false, fmt.Errorf("page %d of %s: %w", job.B.Page, job.B.Path, err)
		}
		pages = append(pages, b)
	}
	for _, ref := range job.Extra {
		img, err := p.raster.Rasterize(ctx, ref.Path, ref.Page, job.Options.DPI)
		if err != nil {
			return "", false, fmt.Errorf("page %d of %s: %w", ref.Page, ref.Path, err)
		}
		pages = append(pages, img)
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	canvas, err := compose(pages, job)
	if err != nil {
		return "", false, err
	}

	degraded := false
	for _, img := range pages {
		degraded = degraded || img.Degraded
	}
	if err := writeOutput(job.Output, canvas); err != nil {
		return "", degraded, err
	}
	return job.Output, degraded, nil
}

func compose(pages []raster.Image, job dispatcher.Job) (*image.RGBA, error) {
	extents := make([]compositor.Extent, len(pages))
	imgs := make([]image.Image, len(pages))
	for i, p := range pages {
		w, h := p.Extent()
		extents[i] = compositor.Extent{Width: w, Height: h}
		imgs[i] = p.RGBA
	}

	switch {
	case len(pages) > 2:
		g, err := compositor.ComposeGrid(extents, job.Options)
		if err != nil {
			return nil, err
		}
		return g.Render(imgs...), nil
	case len(pages) == 2:
		l, err := compositor.Compose(extents[0], extents[1], job.Options)
		if err != nil {
			return nil, err
		}
		return l.Render(imgs[0], imgs[1]), nil
	default:
		l, err := compositor.ComposeSingle(extents[0], job.Options)
		if err != nil {
			return nil, err
		}
		return l.Render(imgs[0], nil), nil
	}
}

// writeOutput encodes the canvas into the format named by the output
// extension. The file lands via temp-and-rename so a crashed job never
// leaves a half-written output behind.
func writeOutput(out string, canvas *image.RGBA) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}

	switch strings.ToLower(filepath.Ext(out)) {
	case ".png":
		return writeImage(out, func(f *os.File) error { return png.Encode(f, canvas) })
	case ".jpg", ".jpeg":
		return writeImage(out, func(f *os.File) error {
			return jpeg.Encode(f, canvas, &jpeg.Options{Quality: 90})
		})
	case ".pdf":
		return writePDF(out, canvas)
	default:
		return &dispatcher.WriteError{Path: out, Err: fmt.Errorf("unsupported output format %q", filepath.Ext(out))}
	}
}

func writeImage(out string, encode func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".compose-*"+filepath.Ext(out))
	if err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	return nil
}

// writePDF wraps the canvas into a one-page PDF: encode to an intermediate
// JPEG, import it with pdfcpu, then move the result into place.
func writePDF(out string, canvas *image.RGBA) error {
	dir := filepath.Dir(out)
	img, err := os.CreateTemp(dir, ".compose-*.jpg")
	if err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	defer os.Remove(img.Name())

	if err := jpeg.Encode(img, canvas, &jpeg.Options{Quality: 90}); err != nil {
		img.Close()
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	if err := img.Close(); err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}

	tmp := img.Name() + ".pdf"
	defer os.Remove(tmp)
	if err := api.ImportImagesFile([]string{img.Name()}, tmp, nil, nil); err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	if err := os.Rename(tmp, out); err != nil {
		return &dispatcher.WriteError{Path: out, Err: err}
	}
	return nil
}
