package imaging

import (
	"encoding/binary"
	"fmt"
)

// Header layout, stored in row 0 of an image:
//
//	offset  size  field
//	0       2     width - 1      (big-endian int16)
//	2       2     height - 1
//	4       2     analysis left
//	6       2     analysis right
//	8       2     analysis top
//	10      2     analysis bottom
//	12      256   results text, NUL padded
//
// An image row narrower than HeaderSize holds the fields and as much of the
// results text as fits before a terminating NUL. Rows narrower than
// HeaderFieldsSize cannot hold a header.
const (
	HeaderFieldsSize = 12
	HeaderSize       = HeaderFieldsSize + MaxResultsLength + 1
)

// Header is the decoded metadata block of a stored image.
type Header struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bounds  Bounds `json:"bounds"`
	Results string `json:"results"`

	// Valid is true when both dimension fields were accepted from the
	// encoded bytes rather than taken from defaults.
	Valid bool `json:"valid"`
}

// HeaderOf returns the metadata of img without touching its pixels.
func HeaderOf(img *Image) Header {
	return Header{
		Width:   img.width,
		Height:  img.height,
		Bounds:  img.bounds,
		Results: img.results,
		Valid:   true,
	}
}

// EncodeHeader writes the metadata of img into row 0. Rows 1 and below are
// never touched.
func EncodeHeader(img *Image) {
	putHeaderRow(img.pix[:img.width], HeaderOf(img))
}

// putHeaderRow encodes h into an image row of any width, cutting the results
// text to fit. A row narrower than HeaderFieldsSize gets only the leading
// bytes of the fields, which never decode as a header.
func putHeaderRow(row []byte, h Header) {
	n := len(row)
	if n > HeaderSize {
		n = HeaderSize
	}
	if n < HeaderFieldsSize {
		copy(row, MarshalHeader(h)[:n])
		return
	}
	putHeader(row[:n], h)
}

// MarshalHeader returns the HeaderSize encoding of h.
func MarshalHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	fields := [6]int{h.Width - 1, h.Height - 1, h.Bounds.Left, h.Bounds.Right, h.Bounds.Top, h.Bounds.Bottom}
	for i, v := range fields {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(int16(v)))
	}
	text := buf[HeaderFieldsSize:]
	for i := range text {
		text[i] = 0
	}
	// One byte always stays NUL so the text is terminated.
	if len(text) > 0 {
		copy(text[:len(text)-1], h.Results)
	}
}

// DecodeHeader reads a header from buf. Every field is validated on its
// own: a field is accepted only if it is non-negative and consistent with
// the fields accepted before it. A rejected field takes its value from def
// when def is itself consistent, and otherwise falls back to the far edge
// of the image.
//
// DecodeHeader fails only when buf is shorter than HeaderFieldsSize.
func DecodeHeader(buf []byte, def Header) (Header, error) {
	if len(buf) < HeaderFieldsSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the %d byte header",
			ErrInvalidArgument, len(buf), HeaderFieldsSize)
	}
	field := func(i int) int {
		return int(int16(binary.BigEndian.Uint16(buf[2*i:])))
	}
	side := func(v int) bool { return v >= MinSide && v <= MaxSide }

	var h Header
	wOK, hOK := side(field(0)+1), side(field(1)+1)
	h.Width = pick(field(0)+1, def.Width, side, clampSide(def.Width))
	h.Height = pick(field(1)+1, def.Height, side, clampSide(def.Height))
	h.Valid = wOK && hOK

	h.Bounds.Left = pick(field(2), def.Bounds.Left,
		func(v int) bool { return v >= 0 && v < h.Width-1 }, 0)
	h.Bounds.Right = pick(field(3), def.Bounds.Right,
		func(v int) bool { return v > h.Bounds.Left && v < h.Width }, h.Width-1)
	h.Bounds.Top = pick(field(4), def.Bounds.Top,
		func(v int) bool { return v >= 1 && v < h.Height-1 }, 1)
	h.Bounds.Bottom = pick(field(5), def.Bounds.Bottom,
		func(v int) bool { return v > h.Bounds.Top && v < h.Height }, h.Height-1)

	h.Results = decodeResults(buf[HeaderFieldsSize:])
	if def.Results != "" && h.Results == "" {
		h.Results = def.Results
	}
	return h, nil
}

// pick returns v if ok accepts it, else def if ok accepts that, else fallback.
func pick(v, def int, ok func(int) bool, fallback int) int {
	if ok(v) {
		return v
	}
	if ok(def) {
		return def
	}
	return fallback
}

func clampSide(v int) int {
	if v < MinSide {
		return MinSide
	}
	if v > MaxSide {
		return MaxSide
	}
	return v
}

func decodeResults(text []byte) string {
	if len(text) > MaxResultsLength+1 {
		text = text[:MaxResultsLength+1]
	}
	for i, c := range text {
		if c == 0 {
			return string(text[:i])
		}
	}
	if len(text) > MaxResultsLength {
		text = text[:MaxResultsLength]
	}
	return string(text)
}

// ApplyHeader decodes the header stored in row 0 of img and adopts its
// analysis bounds and results. The image size itself cannot change. A row 0
// that does not hold a valid header leaves img unchanged.
func ApplyHeader(img *Image) error {
	if img.width < HeaderFieldsSize {
		return nil
	}
	h, err := DecodeHeader(img.pix[:img.width], HeaderOf(img))
	if err != nil {
		return err
	}
	if !h.Valid {
		return nil
	}
	if h.Width != img.width || h.Height != img.height {
		// Bounds decoded against a different size may not fit this buffer.
		h.Bounds = clipBounds(h.Bounds, img.width, img.height)
	}
	img.bounds = h.Bounds
	img.SetResults(h.Results)
	return nil
}

func clipBounds(b Bounds, width, height int) Bounds {
	d := DefaultBounds(width, height)
	if b.Left < 0 || b.Left >= width-1 {
		b.Left = d.Left
	}
	if b.Right <= b.Left || b.Right >= width {
		b.Right = d.Right
	}
	if b.Top < 1 || b.Top >= height-1 {
		b.Top = d.Top
	}
	if b.Bottom <= b.Top || b.Bottom >= height {
		b.Bottom = d.Bottom
	}
	return b
}
