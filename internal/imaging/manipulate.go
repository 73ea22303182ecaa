package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// Manipulation selects a pixel transformation applied by Store.Manipulate.
type Manipulation int

const (
	ManipNone Manipulation = iota
	ManipInvert
	ManipSmooth
	ManipRotate
	ManipCrop
	ManipThreshold
)

var manipulationNames = map[Manipulation]string{
	ManipNone:      "none",
	ManipInvert:    "invert",
	ManipSmooth:    "smooth",
	ManipRotate:    "rotate",
	ManipCrop:      "crop",
	ManipThreshold: "threshold",
}

func (m Manipulation) String() string {
	if s, ok := manipulationNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Manipulation(%d)", int(m))
}

// ParseManipulation maps a protocol name to a Manipulation.
func ParseManipulation(name string) (Manipulation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for m, s := range manipulationNames {
		if s == key {
			return m, nil
		}
	}
	return ManipNone, fmt.Errorf("%w: unknown manipulation %q", ErrInvalidArgument, name)
}

// ManipulateOptions parameterises Store.Manipulate.
type ManipulateOptions struct {
	Op Manipulation

	// Angle is the rotation in radians for ManipRotate, clockwise as
	// displayed, about the centre of the analysis bounds.
	Angle float64

	// Threshold and Background configure ManipThreshold: every pixel below
	// Threshold is set to Background.
	Threshold  float64
	Background float64

	// Replace writes the result back into the source image instead of
	// registering a new one. Not allowed for ManipCrop, which changes size.
	Replace bool

	// Name of the result image. Defaults to "<source>_<op>".
	Name string
}

// Manipulate applies a transformation to the named image.
//
// Same-size transformations keep the analysis bounds and results of the
// source. ManipCrop produces an image of exactly the analysis bounds, with
// fresh default bounds; because row 0 of the result is the first analysis
// row, that row becomes the new header row.
func (s *Store) Manipulate(name string, opts ManipulateOptions) (*Image, error) {
	src, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if opts.Replace && opts.Op == ManipCrop {
		return nil, fmt.Errorf("%w: crop cannot replace its source", ErrInvalidArgument)
	}

	var out *image.Gray
	switch opts.Op {
	case ManipNone:
		out = src.Gray()
	case ManipInvert:
		out = grayFromRGBA(effect.Invert(src.Gray()))
	case ManipSmooth:
		out = grayFromRGBA(blur.Box(src.Gray(), 1))
	case ManipRotate:
		b := src.bounds
		pivot := image.Pt((b.Left+b.Right+1)/2, (b.Top+b.Bottom+1)/2)
		out = grayFromRGBA(transform.Rotate(src.Gray(), opts.Angle*180/math.Pi,
			&transform.RotationOptions{ResizeBounds: false, Pivot: &pivot}))
	case ManipCrop:
		cropped := imaging.Crop(src.Gray(), src.bounds.Rect())
		out = grayFromNRGBA(cropped)
	case ManipThreshold:
		out = src.Gray()
		bg := clampByte(opts.Background)
		for i, v := range out.Pix {
			if float64(v) < opts.Threshold {
				out.Pix[i] = bg
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown manipulation %d", ErrInvalidArgument, int(opts.Op))
	}

	if opts.Replace {
		copy(src.pix, out.Pix)
		return src, nil
	}

	resultName := opts.Name
	if resultName == "" {
		resultName = src.name + "_" + opts.Op.String()
	}
	img, err := fromGray(resultName, out)
	if err != nil {
		return nil, err
	}
	if opts.Op != ManipCrop {
		img.bounds = src.bounds
	}
	img.results = src.results
	s.register(img)
	return img, nil
}

// grayFromRGBA keeps the red channel of a grey image that passed through an
// RGBA filter.
func grayFromRGBA(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Pix[y*g.Stride+x] = src.Pix[y*src.Stride+4*x]
		}
	}
	return g
}

func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Pix[y*g.Stride+x] = src.Pix[y*src.Stride+4*x]
		}
	}
	return g
}

func clampByte(v float64) byte {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
