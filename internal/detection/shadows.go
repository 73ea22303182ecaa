package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/spot-engine/internal/imaging"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Polarity tells the shadow extractor whether bands are darker or lighter
// than the background.
type Polarity int

const (
	Dark Polarity = iota
	Light
)

// Reference is the line shadows are measured against: positions are taken
// where a shadow crosses row Row, and rotations are relative to Angle.
type Reference struct {
	// Row in pixel-corner coordinates. Zero selects the middle of the
	// analysis region.
	Row float64

	// Angle in radians of the reference direction, zero for vertical.
	Angle float64
}

// Shadow is a line-like band reduced to a position and rotation.
type Shadow struct {
	// X is the band centre where it crosses the reference row, in µm.
	X float64 `json:"x"`

	// Rotation is the band's angle from vertical minus the reference
	// angle, in radians. Positive when x grows with row.
	Rotation float64 `json:"rotation"`

	// NumPixels counts the pixels that contributed to the estimate.
	NumPixels int `json:"num_pixels"`

	// Depth is the band contrast against background in intensity units.
	Depth float64 `json:"depth"`

	// Width is the 1/e half-width of the band profile, in µm.
	Width float64 `json:"width"`

	// Refined is true when the local fit replaced the coarse estimate.
	Refined bool `json:"refined"`

	// Converged is true when the fit met its convergence test. A refined
	// shadow that did not converge carries the best point found before the
	// evaluation limit.
	Converged bool `json:"converged"`

	// FitStatus is the optimizer's termination status, empty when no fit
	// was attempted.
	FitStatus string `json:"fit_status,omitempty"`

	centre float64 // column at the reference row, pixel-corner units
	slope  float64 // columns per row
}

// ShadowOptions controls FindShadowsIn.
type ShadowOptions struct {
	Num         int
	Approximate bool
	Polarity    Polarity
	Reference   Reference
	PixelSize   float64

	// MinDepth is the contrast a column minimum needs to count as a
	// candidate. Zero selects 10% of the column profile range.
	MinDepth float64

	// Separation is the closest two shadows may lie, in columns. Zero
	// selects the full width at half depth of the deepest candidate.
	Separation int

	Region image.Rectangle
	Yield  func()
}

// FindShadowsIn locates up to opts.Num vertical bands inside the region.
//
// A coarse pass averages each column, takes the profile median as the
// background, and picks the deepest local extrema that are at least
// Separation columns apart. Unless Approximate is set, each candidate is
// then refined by a Nelder-Mead fit of a Gaussian band profile whose centre
// moves linearly with row. A fit that fails or wanders outside its window
// leaves the coarse estimate in place.
//
// Shadows are returned sorted by increasing X.
func FindShadowsIn(img *imaging.Image, opts ShadowOptions) ([]Shadow, error) {
	if opts.Num < 0 {
		return nil, fmt.Errorf("%w: negative shadow count %d", imaging.ErrInvalidArgument, opts.Num)
	}
	r := img.Region(opts.Region)
	if r.Dx() < 3 || r.Dy() < 1 {
		return nil, fmt.Errorf("%w: region %v too small for shadow search", imaging.ErrInvalidArgument, r)
	}
	if opts.Num == 0 {
		return []Shadow{}, nil
	}
	pixelSize := opts.PixelSize
	if pixelSize <= 0 {
		pixelSize = 1
	}
	ref := opts.Reference
	if ref.Row == 0 {
		ref.Row = float64(r.Min.Y+r.Max.Y) / 2
	}

	profile := columnProfile(img, r)
	sign := 1.0
	if opts.Polarity == Light {
		sign = -1
	}
	bg := median(profile)
	depth := make([]float64, len(profile))
	lo, hi := profile[0], profile[0]
	for i, v := range profile {
		depth[i] = sign * (bg - v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	minDepth := opts.MinDepth
	if minDepth <= 0 {
		minDepth = 0.1 * (hi - lo)
	}
	if hi == lo {
		return []Shadow{}, nil
	}

	candidates := localPeaks(depth, minDepth)
	if len(candidates) == 0 {
		return []Shadow{}, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return depth[candidates[i]] > depth[candidates[j]]
	})
	sep := opts.Separation
	if sep <= 0 {
		sep = halfDepthWidth(depth, candidates[0])
		if sep < 3 {
			sep = 3
		}
	}

	picked := make([]int, 0, opts.Num)
	for _, c := range candidates {
		if len(picked) == opts.Num {
			break
		}
		free := true
		for _, p := range picked {
			if abs(c-p) < sep {
				free = false
				break
			}
		}
		if free {
			picked = append(picked, c)
		}
	}

	shadows := make([]Shadow, 0, len(picked))
	for _, c := range picked {
		sh := Shadow{
			centre:    float64(r.Min.X+c) + 0.5 + parabolicOffset(depth, c),
			Depth:     depth[c],
			Width:     float64(halfDepthWidth(depth, c)) / (2 * math.Sqrt(math.Ln2)),
			NumPixels: r.Dy(),
		}
		if !opts.Approximate {
			refineShadow(img, r, &sh, bg, sign, ref.Row)
			if opts.Yield != nil {
				opts.Yield()
			}
		}
		sh.X = sh.centre * pixelSize
		sh.Rotation = math.Atan(sh.slope) - ref.Angle
		sh.Width *= pixelSize
		shadows = append(shadows, sh)
	}

	sort.SliceStable(shadows, func(i, j int) bool { return shadows[i].X < shadows[j].X })
	return shadows, nil
}

// columnProfile returns the mean intensity of each column of r.
func columnProfile(img *imaging.Image, r image.Rectangle) []float64 {
	profile := make([]float64, r.Dx())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			profile[x-r.Min.X] += float64(img.At(x, y))
		}
	}
	for i := range profile {
		profile[i] /= float64(r.Dy())
	}
	return profile
}

func median(v []float64) float64 {
	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// localPeaks returns the indices whose depth is at least minDepth and no
// smaller than either neighbour.
func localPeaks(depth []float64, minDepth float64) []int {
	var peaks []int
	for i, d := range depth {
		if d < minDepth {
			continue
		}
		if i > 0 && depth[i-1] > d {
			continue
		}
		if i < len(depth)-1 && depth[i+1] > d {
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

// halfDepthWidth counts the contiguous columns around c whose depth is at
// least half of depth[c].
func halfDepthWidth(depth []float64, c int) int {
	half := depth[c] / 2
	lo, hi := c, c
	for lo > 0 && depth[lo-1] >= half {
		lo--
	}
	for hi < len(depth)-1 && depth[hi+1] >= half {
		hi++
	}
	return hi - lo + 1
}

// parabolicOffset interpolates the sub-column position of the peak at c.
func parabolicOffset(depth []float64, c int) float64 {
	if c == 0 || c == len(depth)-1 {
		return 0
	}
	a, b, d := depth[c-1], depth[c], depth[c+1]
	den := a - 2*b + d
	if den == 0 {
		return 0
	}
	off := 0.5 * (a - d) / den
	if math.Abs(off) > 0.5 {
		return 0
	}
	return off
}

// maxFitRows bounds the rows sampled by one fit evaluation.
const maxFitRows = 200

// fitEvaluations caps the cost evaluations of one shadow fit.
var fitEvaluations = 4000

// refineShadow fits the band model
//
//	I(x, y) = bg - sign * depth * exp(-((x - c(y)) / w)²),  c(y) = x0 + s*(y - refRow)
//
// to the pixels within 2.5 widths of the coarse centre.
func refineShadow(img *imaging.Image, r image.Rectangle, sh *Shadow, bg, sign, refRow float64) {
	w0 := math.Max(sh.Width, 1)
	half := int(math.Ceil(2.5*w0)) + 1
	x0 := int(sh.centre)
	win := image.Rect(x0-half, r.Min.Y, x0+half+1, r.Max.Y).Intersect(r)
	if win.Dx() < 3 {
		return
	}
	step := 1
	if win.Dy() > maxFitRows {
		step = (win.Dy() + maxFitRows - 1) / maxFitRows
	}

	cost := func(p []float64) float64 {
		c0, s, w, d, b := p[0], p[1], math.Abs(p[2]), p[3], p[4]
		if w < 1e-3 {
			return math.Inf(1)
		}
		var sum float64
		for y := win.Min.Y; y < win.Max.Y; y += step {
			c := c0 + s*(float64(y)+0.5-refRow)
			for x := win.Min.X; x < win.Max.X; x++ {
				u := (float64(x) + 0.5 - c) / w
				model := b - sign*d*math.Exp(-u*u)
				e := float64(img.At(x, y)) - model
				sum += e * e
			}
		}
		return sum
	}

	start := []float64{sh.centre, 0, w0, sh.Depth, bg}
	res, err := optimize.Minimize(optimize.Problem{Func: cost}, start,
		&optimize.Settings{FuncEvaluations: fitEvaluations}, &optimize.NelderMead{})
	if res == nil {
		sh.FitStatus = optimize.Failure.String()
		return
	}
	// An evaluation-limit error still carries the best point found.
	sh.FitStatus = res.Status.String()
	sh.Converged = err == nil && res.Status.Err() == nil
	if math.IsNaN(res.F) || res.F > cost(start) {
		sh.Converged = false
		return
	}
	p := res.X
	// Reject fits whose centre leaves the window or whose band inverted.
	if p[0] < float64(win.Min.X) || p[0] > float64(win.Max.X) || p[3] <= 0 {
		return
	}
	sh.centre = p[0]
	sh.slope = p[1]
	sh.Width = math.Abs(p[2])
	sh.Depth = p[3]
	sh.NumPixels = win.Dx() * win.Dy()
	sh.Refined = true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
