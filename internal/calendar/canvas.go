package calendar

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Canvas is the drawing surface of one render. It is passed explicitly to
// every drawing step and never shared between renders.
type Canvas struct {
	img *image.NRGBA
}

// NewCanvas returns a white canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: imaging.New(width, height, colorBackground)}
}

// Image exposes the underlying raster.
func (c *Canvas) Image() *image.NRGBA { return c.img }

// Fill paints r with a solid color.
func (c *Canvas) Fill(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// Stroke draws a 1px outline along the inside edge of r.
func (c *Canvas) Stroke(r image.Rectangle, col color.Color) {
	if r.Empty() {
		return
	}
	u := image.NewUniform(col)
	// Top, bottom, left and right edges, each one pixel wide.
	draw.Draw(c.img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), u, image.Point{}, draw.Src)
	draw.Draw(c.img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(c.img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(c.img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}

// Paste composites src over the canvas with its top-left corner at pt,
// honoring transparency.
func (c *Canvas) Paste(src image.Image, pt image.Point) {
	// src may not start at the origin (e.g. a sub-image), so map its Min onto pt.
	b := src.Bounds()
	draw.Draw(c.img, image.Rectangle{Min: pt, Max: pt.Add(b.Size())}, src, b.Min, draw.Over)
}

// Cross draws both diagonals of r, two pixels thick.
func (c *Canvas) Cross(r image.Rectangle, col color.Color) {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return
	}
	// Step along the longer side so the lines have no gaps on non-square tiles.
	steps := max(w, h)
	for s := 0; s < steps; s++ {
		// Integer interpolation hits both corners exactly at s=0 and s=steps-1.
		x := s * (w - 1) / max(steps-1, 1)
		y := s * (h - 1) / max(steps-1, 1)
		for _, p := range []image.Point{
			{r.Min.X + x, r.Min.Y + y},
			{r.Max.X - 1 - x, r.Min.Y + y},
		} {
			// The second pixel gives the 2px thickness; set clips it to r.
			c.set(p, col, r)
			c.set(p.Add(image.Pt(1, 0)), col, r)
		}
	}
}

func (c *Canvas) set(p image.Point, col color.Color, clip image.Rectangle) {
	if p.In(clip) {
		c.img.Set(p.X, p.Y, col)
	}
}

// MeasureText returns the pixel width and height of s in face.
func MeasureText(face font.Face, s string) (int, int) {
	bounds, _ := font.BoundString(face, s)
	return (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}

// TextCentered draws s centered inside r.
func (c *Canvas) TextCentered(r image.Rectangle, s string, face font.Face, col color.Color) {
	// BoundString is relative to the dot; Min.Y is negative for glyphs above
	// the baseline, so subtracting it turns the box top into a baseline.
	bounds, _ := font.BoundString(face, s)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()
	x := r.Min.X + (r.Dx()-w)/2 - bounds.Min.X.Floor()
	y := r.Min.Y + (r.Dy()-h)/2 - bounds.Min.Y.Floor()
	c.text(s, face, col, x, y)
}

// TextAt draws s with the top-left of its bounding box at pt.
func (c *Canvas) TextAt(pt image.Point, s string, face font.Face, col color.Color) {
	bounds, _ := font.BoundString(face, s)
	c.text(s, face, col, pt.X-bounds.Min.X.Floor(), pt.Y-bounds.Min.Y.Floor())
}

func (c *Canvas) text(s string, face font.Face, col color.Color, x, baseline int) {
	// The drawer's dot is on the baseline, not at the top of the glyphs.
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}
