package compositor

import (
	"errors"
	"math"
)

// MarginUnits is the fixed gap inserted before each half of the canvas when
// Options.AddMargin is set.
const MarginUnits = 30.0

// ErrInvalidGeometry is returned when a page extent is zero or negative.
var ErrInvalidGeometry = errors.New("compositor: page extent must be positive")

// Extent is the pixel size of a rasterized page.
type Extent struct {
	Width  float64
	Height float64
}

// Options controls how two pages are placed on one landscape canvas.
type Options struct {
	PreserveAspectRatio bool
	AddMargin           bool
	AutoFit             bool
	DPI                 int
	MinScale            float64
	MaxScale            float64
}

// DefaultOptions mirrors the defaults of the desktop tool this replaces.
func DefaultOptions() Options {
	return Options{
		PreserveAspectRatio: true,
		AddMargin:           true,
		AutoFit:             true,
		DPI:                 200,
		MinScale:            0.7,
		MaxScale:            1.0,
	}
}

// Placement positions one scaled image on the canvas. ScaleX equals ScaleY
// whenever the aspect ratio is preserved.
type Placement struct {
	ScaleX float64
	ScaleY float64
	X      float64
	Y      float64
}

// Layout is the computed plan for one composite page. B is nil for an odd
// trailing page placed alone on the canvas.
type Layout struct {
	CanvasWidth  float64
	CanvasHeight float64
	HalfWidth    float64
	A            Placement
	B            *Placement
}

// Compose computes the landscape layout for two rasterized pages.
//
// The canvas height is the taller of the two pages and each half of the
// canvas is a square of that height. Scales are clamped into
// [MinScale, MaxScale]; with AutoFit on, a final containment pass lowers a
// scale that the lower clamp pushed past its half of the canvas, so
// containment wins over the minimum-scale bound.
func Compose(a, b Extent, opts Options) (Layout, error) {
	if a.Width <= 0 || a.Height <= 0 || b.Width <= 0 || b.Height <= 0 {
		return Layout{}, ErrInvalidGeometry
	}

	newHeight := math.Max(a.Height, b.Height)
	halfWidth := newHeight
	margin := 0.0
	if opts.AddMargin {
		margin = MarginUnits
	}

	pa := placeHalf(a, halfWidth, newHeight, margin, 0, opts)
	pb := placeHalf(b, halfWidth, newHeight, margin, halfWidth, opts)

	return Layout{
		CanvasWidth:  halfWidth * 2,
		CanvasHeight: newHeight,
		HalfWidth:    halfWidth,
		A:            pa,
		B:            &pb,
	}, nil
}

// ComposeSingle lays out an odd trailing page centered on a full-size
// landscape canvas, at scale clamp(1.0, MinScale, MaxScale).
func ComposeSingle(a Extent, opts Options) (Layout, error) {
	if a.Width <= 0 || a.Height <= 0 {
		return Layout{}, ErrInvalidGeometry
	}

	newHeight := a.Height
	canvasWidth := newHeight * 2
	margin := 0.0
	if opts.AddMargin {
		margin = MarginUnits
	}

	s := clamp(1.0, opts.MinScale, opts.MaxScale)
	if opts.AutoFit {
		s = math.Min(s, fitScale(a, canvasWidth-2*margin, newHeight))
	}

	return Layout{
		CanvasWidth:  canvasWidth,
		CanvasHeight: newHeight,
		HalfWidth:    newHeight,
		A: Placement{
			ScaleX: s,
			ScaleY: s,
			X:      (canvasWidth - a.Width*s) / 2,
			Y:      (newHeight - a.Height*s) / 2,
		},
	}, nil
}

// placeHalf scales one page into its half of the canvas and centers it
// vertically. xBase is 0 for the left half and halfWidth for the right.
func placeHalf(e Extent, halfWidth, newHeight, margin, xBase float64, opts Options) Placement {
	var sx, sy float64
	if opts.PreserveAspectRatio {
		s := clamp(fitScale(e, halfWidth, newHeight), opts.MinScale, opts.MaxScale)
		sx, sy = s, s
	} else {
		// Stretch-to-fit: independent per-axis scales, still clamped into
		// [MinScale, MaxScale] on each axis.
		sx = clamp(halfWidth/e.Width, opts.MinScale, opts.MaxScale)
		sy = clamp(newHeight/e.Height, opts.MinScale, opts.MaxScale)
	}

	if opts.AutoFit {
		avail := halfWidth - margin
		if opts.PreserveAspectRatio {
			if s := math.Min(sx, fitScale(e, avail, newHeight)); s < sx {
				sx, sy = s, s
			}
		} else {
			sx = math.Min(sx, avail/e.Width)
			sy = math.Min(sy, newHeight/e.Height)
		}
	}

	return Placement{
		ScaleX: sx,
		ScaleY: sy,
		X:      xBase + margin,
		Y:      (newHeight - e.Height*sy) / 2,
	}
}

func fitScale(e Extent, maxW, maxH float64) float64 {
	return math.Min(maxW/e.Width, maxH/e.Height)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
