package imaging

import (
	"fmt"
	"image"
)

// Size limits applied to every image side.
const (
	MinSide = 10
	MaxSide = 10000
)

// MaxResultsLength is the longest results string an image carries. Longer
// strings are truncated on assignment so that the header always round-trips.
const MaxResultsLength = 255

// Bounds is the analysis rectangle of an image.
//
// Left and Top are the first column and row inside the rectangle; Right and
// Bottom are the last column and row inside it (inclusive), matching the
// values stored in the image header.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Rect converts the inclusive bounds to a half-open image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right+1, b.Bottom+1)
}

// Width returns the number of columns inside the bounds.
func (b Bounds) Width() int { return b.Right - b.Left + 1 }

// Height returns the number of rows inside the bounds.
func (b Bounds) Height() int { return b.Bottom - b.Top + 1 }

// BoundsFromRect converts a half-open rectangle to inclusive bounds.
func BoundsFromRect(r image.Rectangle) Bounds {
	return Bounds{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X - 1, Bottom: r.Max.Y - 1}
}

// Image is a rectangular 8-bit pixel buffer with analysis metadata.
//
// Row 0 of the pixel buffer is reserved for the header written by
// EncodeHeader, so the analysis bounds never include it. The buffer is
// never resized after creation.
type Image struct {
	name    string
	width   int
	height  int
	pix     []byte
	bounds  Bounds
	results string
	overlay *image.NRGBA
}

// newImage allocates a zero-filled image with full analysis bounds.
func newImage(name string, width, height int) (*Image, error) {
	if width < MinSide || height < MinSide || width > MaxSide || height > MaxSide {
		return nil, fmt.Errorf("%w: image size %dx%d outside [%d,%d]",
			ErrInvalidArgument, width, height, MinSide, MaxSide)
	}
	pix, err := allocate(width * height)
	if err != nil {
		return nil, err
	}
	return &Image{
		name:   name,
		width:  width,
		height: height,
		pix:    pix,
		bounds: DefaultBounds(width, height),
	}, nil
}

// allocate turns a runtime allocation panic into ErrAllocation.
func allocate(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %d bytes: %v", ErrAllocation, n, r)
		}
	}()
	return make([]byte, n), nil
}

// DefaultBounds returns the largest analysis bounds allowed for a size:
// every column, and every row except the header row.
func DefaultBounds(width, height int) Bounds {
	return Bounds{Left: 0, Top: 1, Right: width - 1, Bottom: height - 1}
}

// Name returns the store key of the image.
func (img *Image) Name() string { return img.name }

// Width returns the number of columns.
func (img *Image) Width() int { return img.width }

// Height returns the number of rows.
func (img *Image) Height() int { return img.height }

// Pix returns the row-major pixel buffer. The slice aliases the image.
func (img *Image) Pix() []byte { return img.pix }

// At returns the intensity of the pixel in column x, row y.
func (img *Image) At(x, y int) byte { return img.pix[y*img.width+x] }

// Set writes the intensity of the pixel in column x, row y.
func (img *Image) Set(x, y int, v byte) { img.pix[y*img.width+x] = v }

// Bounds returns the analysis bounds.
func (img *Image) Bounds() Bounds { return img.bounds }

// Rect returns the whole image as a half-open rectangle.
func (img *Image) Rect() image.Rectangle { return image.Rect(0, 0, img.width, img.height) }

// SetBounds replaces the analysis bounds after checking
// 0 <= left < right < width and 1 <= top < bottom < height.
func (img *Image) SetBounds(b Bounds) error {
	if err := img.checkBounds(b); err != nil {
		return err
	}
	img.bounds = b
	return nil
}

func (img *Image) checkBounds(b Bounds) error {
	if b.Left < 0 || b.Left >= b.Right || b.Right >= img.width {
		return fmt.Errorf("%w: analysis columns %d..%d outside image width %d",
			ErrInvalidArgument, b.Left, b.Right, img.width)
	}
	if b.Top < 1 || b.Top >= b.Bottom || b.Bottom >= img.height {
		return fmt.Errorf("%w: analysis rows %d..%d outside image height %d",
			ErrInvalidArgument, b.Top, b.Bottom, img.height)
	}
	return nil
}

// Results returns the caller's bookkeeping text.
func (img *Image) Results() string { return img.results }

// SetResults stores s, truncated to MaxResultsLength bytes.
func (img *Image) SetResults(s string) {
	if len(s) > MaxResultsLength {
		s = s[:MaxResultsLength]
	}
	img.results = s
}

// Region clips r to the image and returns it. An empty r selects the
// analysis bounds.
func (img *Image) Region(r image.Rectangle) image.Rectangle {
	if r.Empty() {
		return img.bounds.Rect()
	}
	return r.Intersect(img.Rect())
}

// Gray returns a copy of the pixels as a standard library grey image.
func (img *Image) Gray() *image.Gray {
	g := image.NewGray(img.Rect())
	copy(g.Pix, img.pix)
	return g
}

// dataStart is the offset of the first byte after the header row.
func (img *Image) dataStart() int { return img.width }

// DataLength returns the number of bytes in the data space, which is every
// row after row 0.
func (img *Image) DataLength() int { return len(img.pix) - img.dataStart() }

// ReadData copies length bytes of the data space starting at offset.
func (img *Image) ReadData(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > img.DataLength() {
		return nil, fmt.Errorf("%w: read of %d bytes at offset %d exceeds data space of %d bytes",
			ErrOutOfRange, length, offset, img.DataLength())
	}
	start := img.dataStart() + offset
	out := make([]byte, length)
	copy(out, img.pix[start:start+length])
	return out, nil
}

// WriteData copies data into the data space starting at offset.
func (img *Image) WriteData(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > img.DataLength() {
		return fmt.Errorf("%w: write of %d bytes at offset %d exceeds data space of %d bytes",
			ErrOutOfRange, len(data), offset, img.DataLength())
	}
	copy(img.pix[img.dataStart()+offset:], data)
	return nil
}
