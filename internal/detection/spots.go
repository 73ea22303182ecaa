package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/spot-engine/internal/imaging"
)

// Spot is a connected set of pixels at or above threshold, reduced to a
// position, size and intensity summary.
//
// X and Y are left at zero by Extract and filled in by Estimate. For the
// vertical-line method they hold the line's intercept with the top of the
// analysis region (µm) and its rotation (mrad) instead of a point.
type Spot struct {
	// Index is the discovery order of the spot in a row-major scan, used
	// to break ties when ranking.
	Index int `json:"index"`

	// Bounds is the inclusive bounding box of the pixels.
	Bounds imaging.Bounds `json:"bounds"`

	NumPixels int `json:"num_pixels"`

	// NetIntensity is the sum of intensity minus threshold.
	NetIntensity float64 `json:"net_intensity"`

	// TotalIntensity is the sum of intensity minus background.
	TotalIntensity float64 `json:"total_intensity"`

	MaxIntensity int `json:"max_intensity"`

	// Eccentricity is the long side of Bounds over its short side.
	Eccentricity float64 `json:"eccentricity"`

	Valid bool `json:"valid"`

	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Ellipse axes (µm) and orientation (radians), set by MethodEllipse.
	// Rotation is also set by MethodVerticalLine.
	Major    float64 `json:"major,omitempty"`
	Minor    float64 `json:"minor,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`

	pixels []spotPixel
}

type spotPixel struct {
	x, y int
	net  float64
}

// Pixels returns the member pixel coordinates in discovery order.
func (s *Spot) Pixels() []image.Point {
	pts := make([]image.Point, len(s.pixels))
	for i, p := range s.pixels {
		pts[i] = image.Pt(p.x, p.y)
	}
	return pts
}

// Options controls extraction over a region.
type Options struct {
	// Region restricts segmentation. An empty region selects the analysis
	// bounds of the image.
	Region image.Rectangle

	// Yield is called after every YieldInterval components so a host can
	// keep an interactive loop alive. It must not modify the image store or
	// call back into this package.
	Yield         func()
	YieldInterval int

	// MaxComponents caps the number of accepted spots. Exceeding it fails
	// the whole extraction with imaging.ErrAllocation. Zero means no cap.
	MaxComponents int
}

// Extract finds every maximal 4-connected set of pixels inside the region
// whose intensity is at or above th.Threshold, then drops sets that fail the
// pixel-count or eccentricity limits of th.
//
// Spots are returned in discovery order: a spot is discovered at its first
// pixel in a row-major scan, so the result is independent of how each
// component is traversed. On error no spots are returned.
func Extract(img *imaging.Image, th Threshold, opts Options) ([]*Spot, error) {
	r := img.Region(opts.Region)
	if r.Empty() {
		return nil, fmt.Errorf("%w: empty analysis region", imaging.ErrInvalidArgument)
	}
	w, h := r.Dx(), r.Dy()
	visited := make([]bool, w*h)
	above := func(x, y int) bool {
		return float64(img.At(x, y)) >= th.Threshold
	}

	spots := make([]*Spot, 0)
	discovered := 0
	stack := make([]image.Point, 0, 64)

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if visited[(y-r.Min.Y)*w+x-r.Min.X] || !above(x, y) {
				continue
			}

			spot := &Spot{Index: discovered}
			discovered++
			stack = fillComponent(img, r, visited, above, x, y, stack[:0], spot, th)

			if accept(spot, th) {
				if opts.MaxComponents > 0 && len(spots) >= opts.MaxComponents {
					return nil, fmt.Errorf("%w: more than %d spots", imaging.ErrAllocation, opts.MaxComponents)
				}
				spot.Valid = true
				spots = append(spots, spot)
			}
			if opts.Yield != nil && opts.YieldInterval > 0 && discovered%opts.YieldInterval == 0 {
				opts.Yield()
			}
		}
	}
	return spots, nil
}

// fillComponent collects the component containing (x0, y0) into spot.
//
// Uses an explicit stack rather than recursion so large components cannot
// overflow the goroutine stack. Pixels are marked visited when pushed, so
// each is pushed once.
func fillComponent(img *imaging.Image, r image.Rectangle, visited []bool, above func(x, y int) bool,
	x0, y0 int, stack []image.Point, spot *Spot, th Threshold) []image.Point {
	w := r.Dx()
	mark := func(x, y int) { visited[(y-r.Min.Y)*w+x-r.Min.X] = true }
	seen := func(x, y int) bool { return visited[(y-r.Min.Y)*w+x-r.Min.X] }

	left, top, right, bottom := x0, y0, x0, y0
	mark(x0, y0)
	stack = append(stack, image.Pt(x0, y0))

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		v := img.At(p.X, p.Y)
		net := float64(v) - th.Threshold
		spot.pixels = append(spot.pixels, spotPixel{x: p.X, y: p.Y, net: net})
		spot.NetIntensity += net
		spot.TotalIntensity += float64(v) - th.Background
		if int(v) > spot.MaxIntensity {
			spot.MaxIntensity = int(v)
		}
		if p.X < left {
			left = p.X
		}
		if p.X > right {
			right = p.X
		}
		if p.Y < top {
			top = p.Y
		}
		if p.Y > bottom {
			bottom = p.Y
		}

		// 4-connected neighbours
		for _, d := range [4]image.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			q := p.Add(d)
			if !q.In(r) || seen(q.X, q.Y) || !above(q.X, q.Y) {
				continue
			}
			mark(q.X, q.Y)
			stack = append(stack, q)
		}
	}

	spot.NumPixels = len(spot.pixels)
	spot.Bounds = imaging.Bounds{Left: left, Top: top, Right: right, Bottom: bottom}
	spot.Eccentricity = eccentricity(spot.Bounds.Width(), spot.Bounds.Height())
	return stack
}

// eccentricity is the long side over the short side, infinite when a side
// is zero.
func eccentricity(w, h int) float64 {
	long, short := w, h
	if short > long {
		long, short = short, long
	}
	if short <= 0 {
		return math.Inf(1)
	}
	return float64(long) / float64(short)
}

// accept applies the size and eccentricity limits of th.
func accept(s *Spot, th Threshold) bool {
	if th.MinPixels > 0 && s.NumPixels < th.MinPixels {
		return false
	}
	if th.MaxPixels > 0 && s.NumPixels > th.MaxPixels {
		return false
	}
	if th.MaxEccentricity > 0 && s.Eccentricity > th.MaxEccentricity {
		return false
	}
	return true
}
