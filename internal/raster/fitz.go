package raster

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// probePDF is a minimal one-page document used to verify that the MuPDF
// shared library can actually be loaded and parse input.
var probePDF = []byte("%PDF-1.4\n" +
	"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n" +
	"2 0 obj\n<</Type/Pages/Kids[3 0 R]/Count 1>>\nendobj\n" +
	"3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>\nendobj\n" +
	"xref\n0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000054 00000 n \n" +
	"0000000105 00000 n \n" +
	"trailer\n<</Size 4/Root 1 0 R>>\nstartxref\n170\n%%EOF\n")

// Fitz renders through the go-fitz MuPDF bindings at the exact requested DPI.
type Fitz struct {
	once  sync.Once
	avail bool
}

// NewFitz returns the primary backend. Availability is probed lazily, once.
func NewFitz() *Fitz { return &Fitz{} }

func (f *Fitz) Name() string { return "gofitz" }

func (f *Fitz) Available() bool {
	f.once.Do(func() {
		doc, err := fitz.NewFromMemory(probePDF)
		if err != nil {
			return
		}
		doc.Close()
		f.avail = true
	})
	return f.avail
}

func (f *Fitz) Rasterize(ctx context.Context, path string, page, dpi int) (Image, error) {
	if !f.Available() {
		return Image{}, fmt.Errorf("gofitz: %w", ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return Image{}, fmt.Errorf("gofitz: open %s: %v: %w", path, err, ErrCorrupt)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return Image{}, fmt.Errorf("gofitz: page %d out of range (document has %d): %w", page, doc.NumPage(), ErrCorrupt)
	}

	img, err := doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return Image{}, fmt.Errorf("gofitz: render page %d: %v: %w", page, err, ErrCorrupt)
	}

	b := img.Bounds()
	return Image{
		RGBA:    img,
		Width:   b.Dx(),
		Height:  b.Dy(),
		DPI:     dpi,
		Backend: f.Name(),
	}, nil
}
