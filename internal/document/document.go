package document

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/local/pagecomposer/internal/compositor"
)

// Document is an opened source PDF: its path, page count and per-page
// dimensions in points. Read-only after Open, so jobs can share it freely.
type Document struct {
	Path string
	dims []types.Dim
}

// Open reads page count and page dimensions without rasterizing anything.
func Open(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page dimensions of %s: %w", path, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("document %s has no pages", path)
	}
	doc := &Document{Path: path, dims: dims}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate rejects degenerate page geometry up front, before any rasterize
// work is scheduled against the document.
func (d *Document) Validate() error {
	for i := 0; i < d.PageCount(); i++ {
		w, h, err := d.Dim(i)
		if err != nil {
			return err
		}
		if w <= 0 || h <= 0 {
			return fmt.Errorf("page %d of %s has extent %gx%g: %w", i+1, d.Path, w, h, compositor.ErrInvalidGeometry)
		}
	}
	return nil
}

// New builds a Document from already-known page dimensions.
func New(path string, dims []types.Dim) *Document {
	return &Document{Path: path, dims: dims}
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.dims) }

// Dim returns the intrinsic size of page i (0-based) in points.
func (d *Document) Dim(i int) (w, h float64, err error) {
	if i < 0 || i >= len(d.dims) {
		return 0, 0, fmt.Errorf("page %d out of range (document has %d)", i, len(d.dims))
	}
	return d.dims[i].Width, d.dims[i].Height, nil
}
