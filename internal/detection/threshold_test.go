package detection

import (
	"errors"
	"testing"

	"github.com/ironsheep/spot-engine/internal/imaging"
)

func TestParseThreshold(t *testing.T) {
	st := imaging.Stats{Min: 40, Max: 140, Mean: 50, Median: 45, Count: 100}

	tests := []struct {
		spec string
		want Threshold
	}{
		{"50", Threshold{Threshold: 50}},
		{"50 *", Threshold{Threshold: 50}},
		{"10 %", Threshold{Threshold: 50, Background: 40}},
		{"5 $", Threshold{Threshold: 55, Background: 50}},
		{"50 #", Threshold{Threshold: 95, Background: 50}},
		{"7 &", Threshold{Threshold: 52, Background: 45}},
		{"-5 $", Threshold{Threshold: 45, Background: 50}},
		{"5 $ 4", Threshold{Threshold: 55, Background: 50, MinPixels: 4}},
		{"5 $ 4 >", Threshold{Threshold: 55, Background: 50, MinPixels: 4}},
		{"5 $ 40 <", Threshold{Threshold: 55, Background: 50, MaxPixels: 40}},
		{"5 $ 4 > 3.5", Threshold{Threshold: 55, Background: 50, MinPixels: 4, MaxEccentricity: 3.5}},
		{"60 2.5", Threshold{Threshold: 60, MaxEccentricity: 2.5}},
		{"60 0 0", Threshold{Threshold: 60}},
		{"  60   *  ", Threshold{Threshold: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseThreshold(tt.spec, st)
			if err != nil {
				t.Fatalf("ParseThreshold failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseThreshold_Malformed(t *testing.T) {
	st := imaging.Stats{Min: 0, Max: 255, Mean: 100, Median: 100}

	for _, spec := range []string{
		"",
		"abc",
		"10.5",
		"10 %%",
		"10 % >",
		"10 % -4",
		"10 % 4 > x",
		"10 % 4 > -1",
		"10 % 4 > 3 extra",
	} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseThreshold(spec, st)
			if !errors.Is(err, imaging.ErrInvalidArgument) {
				t.Errorf("got %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestThresholdFor(t *testing.T) {
	img := newSpotImage(t, 20, 20)
	img.Set(5, 5, 140)
	for x := 0; x < 20; x++ {
		img.Set(x, 0, 255) // header row is outside the default region
	}

	th, err := ThresholdFor(img, "10 %", emptyRect)
	if err != nil {
		t.Fatalf("ThresholdFor failed: %v", err)
	}
	if th.Threshold != 14 || th.Background != 0 {
		t.Errorf("got %+v, want threshold 14 background 0", th)
	}
}
