package imaging

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises the intensities inside a region of an image.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// levels holds the 256 possible intensities in increasing order, the
// sample values for the weighted histogram statistics.
var levels = func() []float64 {
	v := make([]float64, 256)
	for i := range v {
		v[i] = float64(i)
	}
	return v
}()

// Histogram counts the pixels of each intensity inside r. An empty r selects
// the analysis bounds.
func (img *Image) Histogram(r image.Rectangle) []float64 {
	r = img.Region(r)
	hist := make([]float64, 256)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.pix[y*img.width : (y+1)*img.width]
		for x := r.Min.X; x < r.Max.X; x++ {
			hist[row[x]]++
		}
	}
	return hist
}

// Stats computes intensity statistics inside r. An empty r selects the
// analysis bounds. The median is the lower empirical median, so it is
// always one of the intensities present.
func (img *Image) Stats(r image.Rectangle) Stats {
	hist := img.Histogram(r)
	var st Stats
	for _, n := range hist {
		st.Count += int(n)
	}
	if st.Count == 0 {
		return st
	}
	for i, n := range hist {
		if n > 0 {
			st.Min = float64(i)
			break
		}
	}
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i] > 0 {
			st.Max = float64(i)
			break
		}
	}
	st.Mean = stat.Mean(levels, hist)
	st.Median = stat.Quantile(0.5, stat.Empirical, levels, hist)
	if st.Count > 1 {
		st.StdDev = stat.StdDev(levels, hist)
	}
	return st
}
