package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"red", color.NRGBA{255, 0, 0, 255}, false},
		{" Blue ", color.NRGBA{0, 0, 255, 255}, false},
		{"#102030", color.NRGBA{0x10, 0x20, 0x30, 255}, false},
		{"#fff", color.NRGBA{255, 255, 255, 255}, false},
		{"chartreuse-ish", color.NRGBA{}, true},
		{"", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("got %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlay_Draw(t *testing.T) {
	img, err := newImage("o", 20, 20)
	if err != nil {
		t.Fatal(err)
	}
	red := color.NRGBA{255, 0, 0, 255}

	img.DrawRect(image.Rect(2, 3, 8, 10), red)
	ov := img.Overlay()
	for _, p := range []image.Point{{2, 3}, {7, 3}, {2, 9}, {7, 9}, {5, 3}} {
		if ov.NRGBAAt(p.X, p.Y) != red {
			t.Errorf("rect outline missing at %v", p)
		}
	}
	if ov.NRGBAAt(5, 6).A != 0 {
		t.Error("rect interior should stay transparent")
	}

	// Lines leaving the image are clipped rather than panicking
	img.DrawLine(image.Pt(-10, 15), image.Pt(40, 15), red)
	if ov.NRGBAAt(0, 15) != red || ov.NRGBAAt(19, 15) != red {
		t.Error("clipped line should cover the whole row")
	}

	img.DrawCross(image.Pt(0, 0), 3, red)
	if ov.NRGBAAt(3, 0) != red || ov.NRGBAAt(0, 3) != red {
		t.Error("cross arms missing")
	}

	img.ClearOverlay()
	if img.Overlay().NRGBAAt(2, 3).A != 0 {
		t.Error("ClearOverlay should make the overlay transparent")
	}
}

func TestOverlay_PaintAndFill(t *testing.T) {
	img, err := newImage("o", 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	img.Set(4, 4, 100)
	img.Set(5, 5, 200)
	green := color.NRGBA{0, 255, 0, 255}

	img.PaintOverlay(image.Rectangle{}, 50, 150, green)
	ov := img.Overlay()
	if ov.NRGBAAt(4, 4) != green {
		t.Error("pixel in range should be painted")
	}
	if ov.NRGBAAt(5, 5).A != 0 || ov.NRGBAAt(1, 1).A != 0 {
		t.Error("pixels out of range should stay transparent")
	}

	img.FillOverlay(green)
	if ov.NRGBAAt(0, 0) != green || ov.NRGBAAt(9, 9) != green {
		t.Error("FillOverlay should cover the whole image")
	}
	if img.At(0, 0) != 0 {
		t.Error("overlay must not change pixel intensities")
	}
}

func mustColor(t *testing.T, s string) color.NRGBA {
	t.Helper()
	c, err := ParseColor(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}
