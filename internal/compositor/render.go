package compositor

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Render paints the laid-out pages onto a white canvas. b must be non-nil
// exactly when the layout was produced by Compose for two pages.
func (l Layout) Render(a, b image.Image) *image.RGBA {
	canvas := newCanvas(l.CanvasWidth, l.CanvasHeight)
	drawPlaced(canvas, a, l.A)
	if l.B != nil && b != nil {
		drawPlaced(canvas, b, *l.B)
	}
	return canvas
}

// Render paints up to four pages onto the grid canvas. imgs must match the
// page order given to ComposeGrid.
func (g GridLayout) Render(imgs ...image.Image) *image.RGBA {
	canvas := newCanvas(g.CanvasWidth, g.CanvasHeight)
	for i, img := range imgs {
		if i >= len(g.Cells) || img == nil {
			break
		}
		drawPlaced(canvas, img, g.Cells[i])
	}
	return canvas
}

func newCanvas(w, h float64) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, round(w), round(h)))
	stddraw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, stddraw.Src)
	return canvas
}

func drawPlaced(dst *image.RGBA, src image.Image, p Placement) {
	sb := src.Bounds()
	w := round(float64(sb.Dx()) * p.ScaleX)
	h := round(float64(sb.Dy()) * p.ScaleY)
	if w <= 0 || h <= 0 {
		return
	}
	x, y := round(p.X), round(p.Y)
	dr := image.Rect(x, y, x+w, y+h)
	xdraw.ApproxBiLinear.Scale(dst, dr, src, sb, xdraw.Over, nil)
}

func round(v float64) int { return int(math.Round(v)) }
