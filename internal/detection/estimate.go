package detection

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ironsheep/spot-engine/internal/imaging"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Method selects the position estimator applied to each spot.
type Method int

const (
	// MethodCentroid reports the net-intensity weighted mean position.
	MethodCentroid Method = iota + 1

	// MethodEllipse reports the centre of the ellipse with the same second
	// moments as the spot's pixel set, with its axes and orientation.
	MethodEllipse

	// MethodVerticalLine fits x as a straight-line function of row and
	// reports the intercept with the top of the region as X (µm) and the
	// line's rotation as Y (mrad).
	MethodVerticalLine
)

var methodNames = map[Method]string{
	MethodCentroid:     "centroid",
	MethodEllipse:      "ellipse",
	MethodVerticalLine: "vertical_line",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a protocol name to a Method.
func ParseMethod(name string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for m, s := range methodNames {
		if s == key {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown position method %q", imaging.ErrInvalidArgument, name)
}

// Estimate computes the position of every valid spot with method m.
//
// Coordinates use the pixel-corner convention: the top-left corner of pixel
// (0,0) is the origin, so the centre of pixel (i,j) is at (i+0.5, j+0.5)
// times pixelSize. region is the region of img the spots were extracted
// from, with an empty region selecting the analysis bounds; the
// vertical-line method measures its intercept at region's top edge.
//
// Invalid spots are left untouched. A spot whose net intensity is zero has
// no defined centroid: it is given its bounding-box centre and marked
// invalid.
func Estimate(img *imaging.Image, spots []*Spot, m Method, pixelSize float64, region image.Rectangle) error {
	region = img.Region(region)
	for _, s := range spots {
		if !s.Valid {
			continue
		}
		switch m {
		case MethodCentroid:
			centroid(s, pixelSize)
		case MethodEllipse:
			ellipse(s, pixelSize)
		case MethodVerticalLine:
			verticalLine(s, pixelSize, float64(region.Min.Y))
		default:
			return fmt.Errorf("%w: unknown position method %d", imaging.ErrInvalidArgument, int(m))
		}
	}
	return nil
}

// boxCentre places s at the centre of its bounding box and invalidates it.
func boxCentre(s *Spot, pixelSize float64) {
	s.X = float64(s.Bounds.Left+s.Bounds.Right+1) / 2 * pixelSize
	s.Y = float64(s.Bounds.Top+s.Bounds.Bottom+1) / 2 * pixelSize
	s.Valid = false
}

func centroid(s *Spot, pixelSize float64) {
	if s.NetIntensity <= 0 {
		boxCentre(s, pixelSize)
		return
	}
	var sx, sy float64
	for _, p := range s.pixels {
		sx += p.net * (float64(p.x) + 0.5)
		sy += p.net * (float64(p.y) + 0.5)
	}
	s.X = sx / s.NetIntensity * pixelSize
	s.Y = sy / s.NetIntensity * pixelSize
}

// pixelVariance is the variance of a uniform distribution over one pixel,
// added to each axis so single-pixel-wide spots keep a finite ellipse.
const pixelVariance = 1.0 / 12

func ellipse(s *Spot, pixelSize float64) {
	n := float64(len(s.pixels))
	if n == 0 {
		boxCentre(s, pixelSize)
		return
	}
	var mx, my float64
	for _, p := range s.pixels {
		mx += float64(p.x) + 0.5
		my += float64(p.y) + 0.5
	}
	mx /= n
	my /= n

	var sxx, syy, sxy float64
	for _, p := range s.pixels {
		dx := float64(p.x) + 0.5 - mx
		dy := float64(p.y) + 0.5 - my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	sxx = sxx/n + pixelVariance
	syy = syy/n + pixelVariance
	sxy /= n

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), true); !ok {
		boxCentre(s, pixelSize)
		return
	}
	// Eigenvalues come back in ascending order.
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	s.X = mx * pixelSize
	s.Y = my * pixelSize
	// A uniform ellipse with semi-axis a has variance a²/4 along that axis.
	s.Major = 4 * math.Sqrt(math.Max(vals[1], 0)) * pixelSize
	s.Minor = 4 * math.Sqrt(math.Max(vals[0], 0)) * pixelSize
	s.Rotation = normalizeAxis(math.Atan2(vecs.At(1, 1), vecs.At(0, 1)))
}

// normalizeAxis folds an axis direction into (-pi/2, pi/2].
func normalizeAxis(a float64) float64 {
	for a > math.Pi/2 {
		a -= math.Pi
	}
	for a <= -math.Pi/2 {
		a += math.Pi
	}
	return a
}

func verticalLine(s *Spot, pixelSize, top float64) {
	if s.NetIntensity <= 0 {
		boxCentre(s, pixelSize)
		return
	}
	rows := s.Bounds.Height()
	sum := make([]float64, rows)
	moment := make([]float64, rows)
	for _, p := range s.pixels {
		j := p.y - s.Bounds.Top
		sum[j] += p.net
		moment[j] += p.net * (float64(p.x) + 0.5)
	}

	ys := make([]float64, 0, rows)
	xs := make([]float64, 0, rows)
	ws := make([]float64, 0, rows)
	for j := 0; j < rows; j++ {
		if sum[j] <= 0 {
			continue
		}
		ys = append(ys, float64(s.Bounds.Top+j)+0.5)
		xs = append(xs, moment[j]/sum[j])
		ws = append(ws, sum[j])
	}

	var alpha, beta float64
	if len(ys) < 2 {
		alpha = xs[0]
	} else {
		alpha, beta = stat.LinearRegression(ys, xs, ws, false)
	}
	s.Rotation = math.Atan(beta)
	s.X = (alpha + beta*top) * pixelSize
	s.Y = s.Rotation * 1000
}
