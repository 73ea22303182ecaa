package detection

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/ironsheep/spot-engine/internal/imaging"
)

// Overlay colours used when a request asks for annotation.
var (
	spotBoxColor   = color.NRGBA{R: 0, G: 0, B: 255, A: 255}
	spotCrossColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	shadowColor    = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
)

// SpotRequest parameterises FindSpots.
type SpotRequest struct {
	Threshold string
	Method    Method
	Sort      SortCode
	Num       int
	PixelSize float64
	Annotate  bool
	Options   Options
}

// SpotResult is the outcome of FindSpots.
type SpotResult struct {
	Threshold Threshold `json:"threshold"`
	Spots     []*Spot   `json:"spots"`

	// Found counts every accepted spot before truncation to Num.
	Found int `json:"found"`

	// Text has one line per requested spot; see FindSpots.
	Text string `json:"text"`
}

// FindSpots runs the camera-spot pipeline: threshold, extract, estimate,
// rank, truncate. The result text has one line per requested spot:
//
//	x y num_pixels max_intensity total_intensity threshold
//
// with "major minor rotation_mrad" appended for MethodEllipse. Invalid spots
// print their position as -1 -1, and lines for spots that were requested but
// not found print -1 -1 0 0 0 threshold. The text is also stored as the
// image results.
func FindSpots(img *imaging.Image, req SpotRequest) (*SpotResult, error) {
	region := img.Region(req.Options.Region)
	th, err := ThresholdFor(img, req.Threshold, region)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == 0 {
		method = MethodCentroid
	}
	code, err := ParseSortCode(int(req.Sort))
	if err != nil {
		return nil, err
	}
	pixelSize := req.PixelSize
	if pixelSize <= 0 {
		pixelSize = 1
	}

	opts := req.Options
	opts.Region = region
	spots, err := Extract(img, th, opts)
	if err != nil {
		return nil, err
	}
	if err := Estimate(img, spots, method, pixelSize, region); err != nil {
		return nil, err
	}
	ranked, err := Rank(spots, code, req.Num)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for i := 0; i < req.Num; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i >= len(ranked) {
			fmt.Fprintf(&b, "-1 -1 0 0 0 %.2f", th.Threshold)
			continue
		}
		s := ranked[i]
		x, y := s.X, s.Y
		if !s.Valid {
			x, y = -1, -1
		}
		fmt.Fprintf(&b, "%.2f %.2f %d %d %.0f %.2f", x, y, s.NumPixels, s.MaxIntensity, s.TotalIntensity, th.Threshold)
		if method == MethodEllipse {
			fmt.Fprintf(&b, " %.2f %.2f %.2f", s.Major, s.Minor, s.Rotation*1000)
		}
	}
	text := b.String()
	img.SetResults(text)

	if req.Annotate {
		annotateSpots(img, ranked, pixelSize)
	}
	return &SpotResult{Threshold: th, Spots: ranked, Found: len(spots), Text: text}, nil
}

func annotateSpots(img *imaging.Image, spots []*Spot, pixelSize float64) {
	for _, s := range spots {
		img.DrawRect(s.Bounds.Rect(), spotBoxColor)
		if s.Valid {
			p := image.Pt(int(s.X/pixelSize), int(s.Y/pixelSize))
			img.DrawCross(p, 3, spotCrossColor)
		}
	}
}

// HitRequest parameterises CountHits.
type HitRequest struct {
	Threshold string
	Num       int
	Annotate  bool
	Options   Options
}

// HitResult is the outcome of CountHits.
type HitResult struct {
	Threshold Threshold `json:"threshold"`
	Count     int       `json:"count"`

	// Total sums the total intensity of every hit.
	Total float64 `json:"total"`

	// Intensities lists hit intensities in decreasing order, at most Num.
	Intensities []float64 `json:"intensities"`

	// Text is "count total i1 i2 ...".
	Text string `json:"text"`
}

// CountHits counts every accepted spot, as a dosimeter counts particle hits,
// and reports the brightest Num of them. No position estimate is made.
func CountHits(img *imaging.Image, req HitRequest) (*HitResult, error) {
	region := img.Region(req.Options.Region)
	th, err := ThresholdFor(img, req.Threshold, region)
	if err != nil {
		return nil, err
	}
	opts := req.Options
	opts.Region = region
	spots, err := Extract(img, th, opts)
	if err != nil {
		return nil, err
	}
	ranked, err := Rank(spots, SortBrightness, req.Num)
	if err != nil {
		return nil, err
	}

	res := &HitResult{Threshold: th, Count: len(spots), Intensities: make([]float64, 0, len(ranked))}
	for _, s := range spots {
		res.Total += s.TotalIntensity
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %.0f", res.Count, res.Total)
	for _, s := range ranked {
		res.Intensities = append(res.Intensities, s.TotalIntensity)
		fmt.Fprintf(&b, " %.0f", s.TotalIntensity)
	}
	res.Text = b.String()
	img.SetResults(res.Text)

	if req.Annotate {
		for _, s := range spots {
			img.DrawRect(s.Bounds.Rect(), spotBoxColor)
		}
	}
	return res, nil
}

// WireRequest parameterises FindWires.
type WireRequest struct {
	Threshold string
	Num       int
	PixelSize float64
	Annotate  bool
	Options   Options
}

// Wire is the straight-line fit to one bright wire image.
type Wire struct {
	// X is where the wire crosses the top of the analysis region, in µm.
	X float64 `json:"x"`

	// Rotation is the wire's angle from vertical in mrad.
	Rotation float64 `json:"rotation"`

	Spot *Spot `json:"spot"`
}

// WireResult is the outcome of FindWires.
type WireResult struct {
	Threshold Threshold `json:"threshold"`
	Wires     []Wire    `json:"wires"`

	// Text has "x rotation" per requested wire, -1 -1 when missing.
	Text string `json:"text"`
}

// FindWires fits a vertical line to each spot and reports the Num brightest
// wires ordered left to right.
func FindWires(img *imaging.Image, req WireRequest) (*WireResult, error) {
	region := img.Region(req.Options.Region)
	th, err := ThresholdFor(img, req.Threshold, region)
	if err != nil {
		return nil, err
	}
	pixelSize := req.PixelSize
	if pixelSize <= 0 {
		pixelSize = 1
	}
	opts := req.Options
	opts.Region = region
	spots, err := Extract(img, th, opts)
	if err != nil {
		return nil, err
	}
	if err := Estimate(img, spots, MethodVerticalLine, pixelSize, region); err != nil {
		return nil, err
	}
	brightest, err := Rank(spots, SortBrightness, req.Num)
	if err != nil {
		return nil, err
	}
	ordered, err := Rank(brightest, SortIncreasingX, len(brightest))
	if err != nil {
		return nil, err
	}

	res := &WireResult{Threshold: th, Wires: make([]Wire, 0, len(ordered))}
	var b strings.Builder
	for i := 0; i < req.Num; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i >= len(ordered) || !ordered[i].Valid {
			b.WriteString("-1 -1")
			if i < len(ordered) {
				res.Wires = append(res.Wires, Wire{X: -1, Rotation: -1, Spot: ordered[i]})
			}
			continue
		}
		s := ordered[i]
		res.Wires = append(res.Wires, Wire{X: s.X, Rotation: s.Y, Spot: s})
		fmt.Fprintf(&b, "%.2f %.3f", s.X, s.Y)
		if req.Annotate {
			drawFittedLine(img, region, s.X/pixelSize, math.Tan(s.Rotation), float64(region.Min.Y), shadowColor)
		}
	}
	res.Text = b.String()
	img.SetResults(res.Text)
	return res, nil
}

// ShadowRequest parameterises FindShadows.
type ShadowRequest struct {
	ShadowOptions
	Annotate bool
}

// ShadowResult is the outcome of FindShadows.
type ShadowResult struct {
	Shadows []Shadow `json:"shadows"`

	// Text has "x rotation_mrad" per requested shadow, -1 -1 when missing.
	Text string `json:"text"`
}

// FindShadows runs the shadow extractor and formats its result.
func FindShadows(img *imaging.Image, req ShadowRequest) (*ShadowResult, error) {
	shadows, err := FindShadowsIn(img, req.ShadowOptions)
	if err != nil {
		return nil, err
	}
	region := img.Region(req.Region)
	refRow := req.Reference.Row
	if refRow == 0 {
		refRow = float64(region.Min.Y+region.Max.Y) / 2
	}

	var b strings.Builder
	for i := 0; i < req.Num; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i >= len(shadows) {
			b.WriteString("-1 -1")
			continue
		}
		fmt.Fprintf(&b, "%.2f %.3f", shadows[i].X, shadows[i].Rotation*1000)
		if req.Annotate {
			sh := shadows[i]
			drawFittedLine(img, region, sh.centre, sh.slope, refRow, shadowColor)
		}
	}
	text := b.String()
	img.SetResults(text)
	return &ShadowResult{Shadows: shadows, Text: text}, nil
}

// drawFittedLine draws x = centre + slope*(y - refRow) across region, in
// pixel-corner coordinates.
func drawFittedLine(img *imaging.Image, region image.Rectangle, centre, slope, refRow float64, c color.NRGBA) {
	at := func(row int) image.Point {
		y := float64(row) + 0.5
		return image.Pt(int(math.Floor(centre+slope*(y-refRow))), row)
	}
	img.DrawLine(at(region.Min.Y), at(region.Max.Y-1), c)
}
