package compositor

import "math"

// GridLayout places up to four pages on one canvas in a 2x2 grid, the
// four-up variant of the landscape merge. Cell order is top-left, top-right,
// bottom-left, bottom-right.
type GridLayout struct {
	CanvasWidth  float64
	CanvasHeight float64
	CellWidth    float64
	CellHeight   float64
	Cells        []Placement
}

// ComposeGrid computes a 2x2 grid layout for 1..4 pages. Cell size is the
// largest page extent; each page is fit-scaled into its cell with the same
// clamp and containment rules as the two-up layout.
func ComposeGrid(pages []Extent, opts Options) (GridLayout, error) {
	if len(pages) == 0 || len(pages) > 4 {
		return GridLayout{}, ErrInvalidGeometry
	}

	var cellW, cellH float64
	for _, p := range pages {
		if p.Width <= 0 || p.Height <= 0 {
			return GridLayout{}, ErrInvalidGeometry
		}
		cellW = math.Max(cellW, p.Width)
		cellH = math.Max(cellH, p.Height)
	}

	margin := 0.0
	if opts.AddMargin {
		margin = MarginUnits
	}

	offsets := [4][2]float64{
		{0, 0},
		{cellW, 0},
		{0, cellH},
		{cellW, cellH},
	}

	g := GridLayout{
		CanvasWidth:  cellW * 2,
		CanvasHeight: cellH * 2,
		CellWidth:    cellW,
		CellHeight:   cellH,
		Cells:        make([]Placement, 0, len(pages)),
	}
	for i, p := range pages {
		s := clamp(fitScale(p, cellW, cellH), opts.MinScale, opts.MaxScale)
		if opts.AutoFit {
			s = math.Min(s, fitScale(p, cellW-margin, cellH))
		}
		g.Cells = append(g.Cells, Placement{
			ScaleX: s,
			ScaleY: s,
			X:      offsets[i][0] + margin,
			Y:      offsets[i][1] + (cellH-p.Height*s)/2,
		})
	}
	return g, nil
}
