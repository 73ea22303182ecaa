package detection

import (
	"fmt"
	"sort"

	"github.com/ironsheep/spot-engine/internal/imaging"
)

// SortCode selects the ranking key for spots. The numeric values are part
// of the external protocol.
type SortCode int

const (
	SortBrightness   SortCode = 1 // decreasing total intensity
	SortIncreasingX  SortCode = 2
	SortDecreasingX  SortCode = 3
	SortIncreasingY  SortCode = 4
	SortDecreasingY  SortCode = 5
	SortMaxIntensity SortCode = 6 // decreasing maximum intensity
	SortSize         SortCode = 7 // decreasing pixel count
	SortIncreasingXY SortCode = 8 // increasing x + y
)

// ParseSortCode validates a protocol sort code. Zero selects SortBrightness.
func ParseSortCode(code int) (SortCode, error) {
	if code == 0 {
		return SortBrightness, nil
	}
	if code < int(SortBrightness) || code > int(SortIncreasingXY) {
		return 0, fmt.Errorf("%w: sort code %d outside 1..8", imaging.ErrInvalidArgument, code)
	}
	return SortCode(code), nil
}

// less reports whether a ranks strictly before b under code.
func (code SortCode) less(a, b *Spot) bool {
	switch code {
	case SortIncreasingX:
		return a.X < b.X
	case SortDecreasingX:
		return a.X > b.X
	case SortIncreasingY:
		return a.Y < b.Y
	case SortDecreasingY:
		return a.Y > b.Y
	case SortMaxIntensity:
		return a.MaxIntensity > b.MaxIntensity
	case SortSize:
		return a.NumPixels > b.NumPixels
	case SortIncreasingXY:
		return a.X+a.Y < b.X+b.Y
	default:
		return a.TotalIntensity > b.TotalIntensity
	}
}

// Rank returns the first num spots ordered by code, breaking ties by
// discovery order. The input slice is not modified. num == 0 yields an
// empty result.
func Rank(spots []*Spot, code SortCode, num int) ([]*Spot, error) {
	if num < 0 {
		return nil, fmt.Errorf("%w: negative spot count %d", imaging.ErrInvalidArgument, num)
	}
	if _, err := ParseSortCode(int(code)); err != nil {
		return nil, err
	}
	ranked := make([]*Spot, len(spots))
	copy(ranked, spots)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if code.less(a, b) {
			return true
		}
		if code.less(b, a) {
			return false
		}
		return a.Index < b.Index
	})
	if len(ranked) > num {
		ranked = ranked[:num]
	}
	return ranked, nil
}
