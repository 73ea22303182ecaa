package detection

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/ironsheep/spot-engine/internal/imaging"
)

// Threshold is the numeric outcome of a threshold string applied to the
// statistics of an image.
type Threshold struct {
	// Threshold is the intensity at or above which a pixel belongs to a spot.
	Threshold float64 `json:"threshold"`

	// Background is subtracted from pixel intensities when totalling spot
	// intensity.
	Background float64 `json:"background"`

	// MinPixels and MaxPixels bound the pixel count of an accepted spot.
	// Zero disables a bound.
	MinPixels int `json:"min_pixels"`
	MaxPixels int `json:"max_pixels"`

	// MaxEccentricity bounds the ratio of the long to the short side of a
	// spot's bounding box. Zero disables the bound.
	MaxEccentricity float64 `json:"max_eccentricity"`
}

// Threshold symbols select how the leading integer becomes an intensity.
const (
	SymbolAbsolute = "*" // threshold = value
	SymbolPercent  = "%" // threshold = min + value% of (max - min)
	SymbolAvgRange = "#" // threshold = mean + value% of (max - mean)
	SymbolAvg      = "$" // threshold = mean + value
	SymbolMedian   = "&" // threshold = median + value
)

// ParseThreshold interprets a threshold string against image statistics.
//
// The grammar is space-separated:
//
//	<int> [symbol] [<int> [relation]] [<real>]
//
// The optional second integer is a pixel-count limit: a minimum with
// relation ">" (the default) or a maximum with "<". The optional trailing
// real is the maximum eccentricity. Examples:
//
//	"50"          threshold 50, background 0
//	"10 %"        10% of the way from min to max, background min
//	"5 $ 4 > 3.5" mean + 5, spots of at least 4 pixels, eccentricity <= 3.5
//
// Malformed strings return an error wrapping imaging.ErrInvalidArgument.
func ParseThreshold(spec string, st imaging.Stats) (Threshold, error) {
	tokens := strings.Fields(spec)
	if len(tokens) == 0 {
		return Threshold{}, fmt.Errorf("%w: empty threshold string", imaging.ErrInvalidArgument)
	}
	fail := func(format string, args ...interface{}) (Threshold, error) {
		return Threshold{}, fmt.Errorf("%w: threshold %q: %s", imaging.ErrInvalidArgument, spec, fmt.Sprintf(format, args...))
	}

	value, err := strconv.Atoi(tokens[0])
	if err != nil {
		return fail("leading token %q is not an integer", tokens[0])
	}
	i := 1

	symbol := SymbolAbsolute
	if i < len(tokens) && isSymbol(tokens[i]) {
		symbol = tokens[i]
		i++
	}

	var th Threshold
	if i < len(tokens) {
		if n, err := strconv.Atoi(tokens[i]); err == nil {
			if n < 0 {
				return fail("pixel count %d is negative", n)
			}
			i++
			relation := ">"
			if i < len(tokens) && isRelation(tokens[i]) {
				relation = tokens[i]
				i++
			}
			if relation == ">" {
				th.MinPixels = n
			} else {
				th.MaxPixels = n
			}
		} else if isRelation(tokens[i]) {
			return fail("relation %q without a pixel count", tokens[i])
		}
	}

	if i < len(tokens) {
		e, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return fail("token %q is not a number", tokens[i])
		}
		if e < 0 {
			return fail("eccentricity %g is negative", e)
		}
		th.MaxEccentricity = e
		i++
	}
	if i < len(tokens) {
		return fail("unexpected token %q", tokens[i])
	}

	v := float64(value)
	switch symbol {
	case SymbolAbsolute:
		th.Threshold, th.Background = v, 0
	case SymbolPercent:
		th.Threshold = st.Min + v/100*(st.Max-st.Min)
		th.Background = st.Min
	case SymbolAvgRange:
		th.Threshold = st.Mean + v/100*(st.Max-st.Mean)
		th.Background = st.Mean
	case SymbolAvg:
		th.Threshold, th.Background = st.Mean+v, st.Mean
	case SymbolMedian:
		th.Threshold, th.Background = st.Median+v, st.Median
	}
	return th, nil
}

// ThresholdFor parses spec against the statistics of img inside r. An empty
// r selects the analysis bounds.
func ThresholdFor(img *imaging.Image, spec string, r image.Rectangle) (Threshold, error) {
	return ParseThreshold(spec, img.Stats(r))
}

func isSymbol(tok string) bool {
	switch tok {
	case SymbolAbsolute, SymbolPercent, SymbolAvgRange, SymbolAvg, SymbolMedian:
		return true
	}
	return false
}

func isRelation(tok string) bool {
	return tok == ">" || tok == "<"
}
