package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// palette maps the colour names accepted at the protocol edge to hex codes.
var palette = map[string]string{
	"red":     "#ff0000",
	"green":   "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"orange":  "#ff8000",
	"magenta": "#ff00ff",
	"cyan":    "#00ffff",
	"white":   "#ffffff",
	"black":   "#000000",
}

// ParseColor accepts a palette name ("red", "green", ...) or a hex colour
// "#RGB" / "#RRGGBB" and returns an opaque colour.
func ParseColor(s string) (color.NRGBA, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := palette[key]; ok {
		key = hex
	}
	c, err := colorful.Hex(key)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: colour %q: %v", ErrInvalidArgument, s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Overlay returns the annotation plane, allocating a transparent one on
// first use. The overlay never feeds back into pixel intensities.
func (img *Image) Overlay() *image.NRGBA {
	if img.overlay == nil {
		img.overlay = image.NewNRGBA(img.Rect())
	}
	return img.overlay
}

// ClearOverlay makes every overlay pixel transparent.
func (img *Image) ClearOverlay() {
	ov := img.Overlay()
	for i := range ov.Pix {
		ov.Pix[i] = 0
	}
}

// FillOverlay sets every overlay pixel to c.
func (img *Image) FillOverlay(c color.NRGBA) {
	draw.Draw(img.Overlay(), img.Rect(), image.NewUniform(c), image.Point{}, draw.Src)
}

// PaintOverlay colours the overlay wherever the underlying intensity lies in
// [lo, hi] inside r. An empty r selects the analysis bounds.
func (img *Image) PaintOverlay(r image.Rectangle, lo, hi int, c color.NRGBA) {
	r = img.Region(r)
	ov := img.Overlay()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := int(img.At(x, y))
			if v >= lo && v <= hi {
				ov.SetNRGBA(x, y, c)
			}
		}
	}
}

// DrawRect outlines r (half-open) on the overlay.
func (img *Image) DrawRect(r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	img.DrawLine(image.Pt(x0, y0), image.Pt(x1, y0), c)
	img.DrawLine(image.Pt(x1, y0), image.Pt(x1, y1), c)
	img.DrawLine(image.Pt(x1, y1), image.Pt(x0, y1), c)
	img.DrawLine(image.Pt(x0, y1), image.Pt(x0, y0), c)
}

// DrawLine draws a one-pixel Bresenham line between two pixel coordinates.
// Points outside the image are clipped.
func (img *Image) DrawLine(p0, p1 image.Point, c color.NRGBA) {
	ov := img.Overlay()
	dx := abs(p1.X - p0.X)
	dy := -abs(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	e := dx + dy
	x, y := p0.X, p0.Y
	for {
		if image.Pt(x, y).In(ov.Rect) {
			ov.SetNRGBA(x, y, c)
		}
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// DrawCross draws a plus-shaped marker of the given half-size centred on p.
func (img *Image) DrawCross(p image.Point, size int, c color.NRGBA) {
	img.DrawLine(image.Pt(p.X-size, p.Y), image.Pt(p.X+size, p.Y), c)
	img.DrawLine(image.Pt(p.X, p.Y-size), image.Pt(p.X, p.Y+size), c)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
