package detection

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/ironsheep/spot-engine/internal/imaging"
	"gonum.org/v1/gonum/optimize"
)

// drawBand paints a Gaussian band of the given depth over a flat
// background. The band centre is centre + slope*(y+0.5-refRow), in
// pixel-corner coordinates, and w is its 1/e half-width.
func drawBand(img *imaging.Image, bg, depth, centre, slope, refRow, w float64) {
	for y := 0; y < img.Height(); y++ {
		c := centre + slope*(float64(y)+0.5-refRow)
		for x := 0; x < img.Width(); x++ {
			u := (float64(x) + 0.5 - c) / w
			v := bg - depth*math.Exp(-u*u)
			img.Set(x, y, byte(math.Round(v)))
		}
	}
}

func fillImage(img *imaging.Image, v byte) {
	fillRect(img, img.Rect(), v)
}

func TestFindShadowsIn_Approximate(t *testing.T) {
	img := newSpotImage(t, 40, 20)
	fillImage(img, 200)
	for _, col := range []int{10, 25} {
		fillRect(img, image.Rect(col-1, 0, col+2, 20), 125)
		fillRect(img, image.Rect(col, 0, col+1, 20), 50)
	}
	// The second band is the deeper one
	fillRect(img, image.Rect(25, 0, 26, 20), 20)

	shadows, err := FindShadowsIn(img, ShadowOptions{Num: 2, Approximate: true, PixelSize: 10})
	if err != nil {
		t.Fatalf("FindShadowsIn failed: %v", err)
	}
	if len(shadows) != 2 {
		t.Fatalf("got %d shadows, want 2", len(shadows))
	}
	if shadows[0].X >= shadows[1].X {
		t.Error("shadows should be sorted by increasing x")
	}
	if !near(shadows[0].X, 105, 1e-9) {
		t.Errorf("first x: got %g, want 105", shadows[0].X)
	}
	if !near(shadows[1].X, 255, 1e-9) {
		t.Errorf("second x: got %g, want 255", shadows[1].X)
	}
	if shadows[0].Rotation != 0 || shadows[0].Refined {
		t.Errorf("approximate shadow: %+v", shadows[0])
	}

	one, err := FindShadowsIn(img, ShadowOptions{Num: 1, Approximate: true, PixelSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || !near(one[0].X, shadows[1].X, 1e-9) {
		t.Errorf("Num 1 should keep the deepest shadow, got %+v", one)
	}
}

func TestFindShadowsIn_Refined(t *testing.T) {
	img := newSpotImage(t, 60, 41)
	refRow := 21.0 // middle of rows 1..40
	slope := 0.1
	drawBand(img, 200, 100, 30, slope, refRow, 3)

	calls := 0
	shadows, err := FindShadowsIn(img, ShadowOptions{
		Num:       1,
		PixelSize: 1,
		Yield:     func() { calls++ },
	})
	if err != nil {
		t.Fatalf("FindShadowsIn failed: %v", err)
	}
	if len(shadows) != 1 {
		t.Fatalf("got %d shadows, want 1", len(shadows))
	}
	sh := shadows[0]
	if !sh.Refined {
		t.Fatal("fit should refine the shadow")
	}
	if !near(sh.X, 30, 0.15) {
		t.Errorf("x: got %g, want 30", sh.X)
	}
	if !near(sh.Rotation, math.Atan(slope), 0.01) {
		t.Errorf("rotation: got %g, want %g", sh.Rotation, math.Atan(slope))
	}
	if !near(sh.Depth, 100, 5) || !near(sh.Width, 3, 0.3) {
		t.Errorf("depth %g width %g, want 100 and 3", sh.Depth, sh.Width)
	}
	if calls != 1 {
		t.Errorf("yield calls: got %d, want 1", calls)
	}
	if !sh.Converged || sh.FitStatus == "" {
		t.Errorf("fit should converge: converged %v, status %q", sh.Converged, sh.FitStatus)
	}
}

func TestFindShadowsIn_FitLimit(t *testing.T) {
	saved := fitEvaluations
	fitEvaluations = 20
	t.Cleanup(func() { fitEvaluations = saved })

	img := newSpotImage(t, 60, 41)
	drawBand(img, 200, 100, 30, 0.1, 21, 3)

	shadows, err := FindShadowsIn(img, ShadowOptions{Num: 1, PixelSize: 1})
	if err != nil {
		t.Fatalf("FindShadowsIn failed: %v", err)
	}
	if len(shadows) != 1 {
		t.Fatalf("got %d shadows, want 1", len(shadows))
	}
	sh := shadows[0]
	if sh.Converged {
		t.Error("a fit stopped by the evaluation limit should not report convergence")
	}
	if sh.FitStatus != optimize.FunctionEvaluationLimit.String() {
		t.Errorf("status: got %q, want %q", sh.FitStatus, optimize.FunctionEvaluationLimit.String())
	}
	// The coarse estimate is still close
	if !near(sh.X, 30, 1) {
		t.Errorf("x: got %g, want about 30", sh.X)
	}
}

func TestFindShadowsIn_ApproximateHasNoFit(t *testing.T) {
	img := newSpotImage(t, 30, 20)
	fillImage(img, 200)
	fillRect(img, image.Rect(14, 0, 15, 20), 50)

	shadows, err := FindShadowsIn(img, ShadowOptions{Num: 1, Approximate: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(shadows) != 1 || shadows[0].Converged || shadows[0].FitStatus != "" {
		t.Errorf("approximate shadow should carry no fit status: %+v", shadows)
	}
}

func TestFindShadowsIn_Reference(t *testing.T) {
	img := newSpotImage(t, 60, 41)
	drawBand(img, 200, 100, 30, 0.1, 21, 3)

	shadows, err := FindShadowsIn(img, ShadowOptions{
		Num:       1,
		PixelSize: 1,
		Reference: Reference{Row: 11, Angle: 0.05},
	})
	if err != nil {
		t.Fatalf("FindShadowsIn failed: %v", err)
	}
	if len(shadows) != 1 {
		t.Fatalf("got %d shadows, want 1", len(shadows))
	}
	// Ten rows above the band's reference the centre is one column left
	if !near(shadows[0].X, 29, 0.15) {
		t.Errorf("x: got %g, want 29", shadows[0].X)
	}
	if !near(shadows[0].Rotation, math.Atan(0.1)-0.05, 0.01) {
		t.Errorf("rotation: got %g", shadows[0].Rotation)
	}
}

func TestFindShadowsIn_LightPolarity(t *testing.T) {
	img := newSpotImage(t, 30, 20)
	fillImage(img, 20)
	fillRect(img, image.Rect(14, 0, 15, 20), 220)

	dark, err := FindShadowsIn(img, ShadowOptions{Num: 1, Approximate: true, PixelSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(dark) != 0 {
		t.Errorf("a bright band is not a dark shadow, got %+v", dark)
	}

	light, err := FindShadowsIn(img, ShadowOptions{Num: 1, Approximate: true, Polarity: Light, PixelSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(light) != 1 || !near(light[0].X, 14.5, 1e-9) {
		t.Errorf("light band: got %+v, want x 14.5", light)
	}
}

func TestFindShadowsIn_Separation(t *testing.T) {
	img := newSpotImage(t, 40, 20)
	fillImage(img, 200)
	fillRect(img, image.Rect(10, 0, 11, 20), 50)
	fillRect(img, image.Rect(14, 0, 15, 20), 60)

	tests := []struct {
		sep  int
		want int
	}{
		{0, 2},
		{3, 2},
		{5, 1},
	}
	for _, tt := range tests {
		shadows, err := FindShadowsIn(img, ShadowOptions{Num: 2, Approximate: true, Separation: tt.sep})
		if err != nil {
			t.Fatal(err)
		}
		if len(shadows) != tt.want {
			t.Errorf("separation %d: got %d shadows, want %d", tt.sep, len(shadows), tt.want)
		}
	}
}

func TestFindShadowsIn_Flat(t *testing.T) {
	img := newSpotImage(t, 30, 20)
	fillImage(img, 90)

	shadows, err := FindShadowsIn(img, ShadowOptions{Num: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(shadows) != 0 {
		t.Errorf("flat image: got %d shadows", len(shadows))
	}
}

func TestFindShadowsIn_Invalid(t *testing.T) {
	img := newSpotImage(t, 30, 20)

	if _, err := FindShadowsIn(img, ShadowOptions{Num: -1}); !errors.Is(err, imaging.ErrInvalidArgument) {
		t.Errorf("negative num: got %v", err)
	}
	if _, err := FindShadowsIn(img, ShadowOptions{Num: 1, Region: image.Rect(3, 3, 5, 10)}); !errors.Is(err, imaging.ErrInvalidArgument) {
		t.Errorf("narrow region: got %v", err)
	}
	shadows, err := FindShadowsIn(img, ShadowOptions{Num: 0})
	if err != nil || len(shadows) != 0 {
		t.Errorf("num 0: got %v, %v", shadows, err)
	}
}

func TestParabolicOffset(t *testing.T) {
	tests := []struct {
		depth []float64
		c     int
		want  float64
	}{
		{[]float64{1, 2, 1}, 1, 0},
		{[]float64{0, 4, 2}, 1, 1.0 / 6},
		{[]float64{2, 4, 0}, 1, -1.0 / 6},
		{[]float64{4, 2, 1}, 0, 0},
	}
	for _, tt := range tests {
		if got := parabolicOffset(tt.depth, tt.c); !near(got, tt.want, 1e-12) {
			t.Errorf("parabolicOffset(%v, %d) = %g, want %g", tt.depth, tt.c, got, tt.want)
		}
	}
}
