package imaging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMarshalHeader_Layout(t *testing.T) {
	h := Header{
		Width:   640,
		Height:  480,
		Bounds:  Bounds{Left: 10, Top: 20, Right: 600, Bottom: 400},
		Results: "1.5 2.5",
	}

	buf := MarshalHeader(h)
	if len(buf) != HeaderSize {
		t.Fatalf("length: got %d, want %d", len(buf), HeaderSize)
	}

	// width-1, height-1, left, right, top, bottom as big-endian int16
	wantFields := []byte{0x02, 0x7F, 0x01, 0xDF, 0x00, 0x0A, 0x02, 0x58, 0x00, 0x14, 0x01, 0x90}
	if !bytes.Equal(buf[:HeaderFieldsSize], wantFields) {
		t.Errorf("fields: got % x, want % x", buf[:HeaderFieldsSize], wantFields)
	}
	if got := string(buf[HeaderFieldsSize : HeaderFieldsSize+7]); got != "1.5 2.5" {
		t.Errorf("results text: got %q", got)
	}
	if buf[HeaderFieldsSize+7] != 0 || buf[HeaderSize-1] != 0 {
		t.Error("results text should be NUL terminated")
	}
}

func TestDecodeHeader_RoundTrip(t *testing.T) {
	h := Header{
		Width:   300,
		Height:  200,
		Bounds:  Bounds{Left: 1, Top: 2, Right: 298, Bottom: 150},
		Results: "12 34 5",
		Valid:   true,
	}

	got, err := DecodeHeader(MarshalHeader(h), Header{})
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestDecodeHeader_FieldFallback(t *testing.T) {
	def := Header{Width: 100, Height: 50, Bounds: Bounds{Left: 4, Top: 5, Right: 90, Bottom: 40}}

	tests := []struct {
		name   string
		header Header
		want   Header
	}{
		{
			name:   "bad width uses default",
			header: Header{Width: 6, Height: 50, Bounds: Bounds{Left: 0, Top: 1, Right: 99, Bottom: 49}},
			want:   Header{Width: 100, Height: 50, Bounds: Bounds{Left: 0, Top: 1, Right: 99, Bottom: 49}},
		},
		{
			name:   "right before left uses default",
			header: Header{Width: 100, Height: 50, Bounds: Bounds{Left: 30, Top: 1, Right: 20, Bottom: 49}},
			want:   Header{Width: 100, Height: 50, Bounds: Bounds{Left: 30, Top: 1, Right: 90, Bottom: 49}, Valid: true},
		},
		{
			name:   "top in header row uses default",
			header: Header{Width: 100, Height: 50, Bounds: Bounds{Left: 0, Top: 0, Right: 99, Bottom: 49}},
			want:   Header{Width: 100, Height: 50, Bounds: Bounds{Left: 0, Top: 5, Right: 99, Bottom: 49}, Valid: true},
		},
		{
			name:   "negative bottom uses default",
			header: Header{Width: 100, Height: 50, Bounds: Bounds{Left: 0, Top: 1, Right: 99, Bottom: -3}},
			want:   Header{Width: 100, Height: 50, Bounds: Bounds{Left: 0, Top: 1, Right: 99, Bottom: 40}, Valid: true},
		},
		{
			name:   "default inconsistent falls back to edge",
			header: Header{Width: 20, Height: 50, Bounds: Bounds{Left: 0, Top: 1, Right: 25, Bottom: 49}},
			want:   Header{Width: 20, Height: 50, Bounds: Bounds{Left: 0, Top: 1, Right: 19, Bottom: 49}, Valid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHeader(MarshalHeader(tt.header), def)
			if err != nil {
				t.Fatalf("DecodeHeader failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeHeader_Short(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderFieldsSize-1), Header{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestDecodeHeader_UnterminatedResults(t *testing.T) {
	buf := MarshalHeader(Header{Width: 20, Height: 20, Bounds: DefaultBounds(20, 20)})
	for i := HeaderFieldsSize; i < len(buf); i++ {
		buf[i] = 'x'
	}

	h, err := DecodeHeader(buf, Header{})
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if len(h.Results) != MaxResultsLength {
		t.Errorf("results length: got %d, want %d", len(h.Results), MaxResultsLength)
	}
}

func TestSetResults_Truncates(t *testing.T) {
	img, err := newImage("a", 20, 20)
	if err != nil {
		t.Fatal(err)
	}
	img.SetResults(strings.Repeat("9", 300))
	if len(img.Results()) != MaxResultsLength {
		t.Errorf("results length: got %d, want %d", len(img.Results()), MaxResultsLength)
	}
}

func TestEncodeHeader_StaysInRowZero(t *testing.T) {
	tests := []struct {
		name        string
		width       int
		wantHeader  bool
		wantResults int
	}{
		{"wide", 300, true, 200},
		{"narrow", 30, true, 30 - HeaderFieldsSize - 1},
		{"fields only", HeaderFieldsSize, true, 0},
		{"too narrow", 10, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := newImage("small", tt.width, 10)
			if err != nil {
				t.Fatal(err)
			}
			for i := range img.pix {
				img.pix[i] = 7
			}
			img.SetResults(strings.Repeat("r", 200))

			EncodeHeader(img)

			for i, v := range img.pix[tt.width:] {
				if v != 7 {
					t.Fatalf("byte %d after row 0 changed to %d", i, v)
				}
			}
			h, err := DecodeHeader(img.pix[:tt.width], Header{})
			if !tt.wantHeader {
				if err == nil {
					t.Errorf("a %d byte row should not decode, got %+v", tt.width, h)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeHeader failed: %v", err)
			}
			if !h.Valid || h.Width != tt.width || h.Height != 10 {
				t.Errorf("header: got %+v", h)
			}
			if len(h.Results) != tt.wantResults {
				t.Errorf("results length: got %d, want %d", len(h.Results), tt.wantResults)
			}
		})
	}
}

func TestApplyHeader_NarrowImage(t *testing.T) {
	img, err := newImage("a", 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	EncodeHeader(img)
	if err := ApplyHeader(img); err != nil {
		t.Fatalf("ApplyHeader failed: %v", err)
	}
	if img.Bounds() != DefaultBounds(10, 20) {
		t.Errorf("bounds: got %+v", img.Bounds())
	}
}

func TestApplyHeader(t *testing.T) {
	img, err := newImage("a", 300, 20)
	if err != nil {
		t.Fatal(err)
	}
	for i := range img.pix {
		img.pix[i] = 0x80
	}
	if err := ApplyHeader(img); err != nil {
		t.Fatalf("ApplyHeader failed: %v", err)
	}
	if img.Bounds() != DefaultBounds(300, 20) || img.Results() != "" {
		t.Errorf("pixels without a header changed metadata: %+v %q", img.Bounds(), img.Results())
	}

	want := Bounds{Left: 5, Top: 3, Right: 250, Bottom: 18}
	putHeader(img.pix[:HeaderSize], Header{Width: 300, Height: 20, Bounds: want, Results: "ok"})
	if err := ApplyHeader(img); err != nil {
		t.Fatalf("ApplyHeader failed: %v", err)
	}
	if img.Bounds() != want || img.Results() != "ok" {
		t.Errorf("got %+v %q, want %+v ok", img.Bounds(), img.Results(), want)
	}
}
