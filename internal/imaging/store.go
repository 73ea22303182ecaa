package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"math"
	"path"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// Store is a registry of named images.
//
// The store owns every image it holds: at most one image exists per name,
// and creating or renaming onto a taken name destroys the previous holder.
// Callers receive *Image handles; a handle stays readable after its image is
// destroyed but is no longer reachable through the store.
//
// The registry itself is safe for concurrent use. Pixel operations on a
// single image are not synchronized; the detection engine assumes one
// calling goroutine per image.
//
// # Example Usage
//
//	store := imaging.NewStore(nil)
//	img, err := store.Create(imaging.CreateOptions{Name: "cam", Width: 344, Height: 244})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	names := store.List("ca*")
type Store struct {
	mu     sync.RWMutex
	images map[string]*Image
	serial int
	log    logrus.FieldLogger
}

// NewStore creates an empty store. A nil logger discards log output.
func NewStore(logger logrus.FieldLogger) *Store {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Store{
		images: make(map[string]*Image),
		log:    logger,
	}
}

// CreateOptions describes a new image.
type CreateOptions struct {
	// Name is the store key. An empty name gets a generated one.
	Name string

	// Width and Height give the image size. When Data is supplied either or
	// both may be zero and are then inferred from the data length.
	Width  int
	Height int

	// Bounds overrides the analysis bounds. Nil selects the bounds from an
	// accepted header, or the full default bounds.
	Bounds *Bounds

	// Results overrides the results text.
	Results string

	// Data is copied into the pixel buffer, truncated to fit.
	Data []byte

	// TryHeader decodes a header from the start of Data and, when its
	// dimensions are accepted, uses them in place of Width and Height.
	TryHeader bool
}

// Create allocates an image, registers it under its name and returns it.
//
// Size inference when Data is supplied: an accepted header wins; otherwise,
// with neither dimension given, the image is the smallest square that holds
// the data; with one dimension given, the other is the data length divided
// by it, rounded up. Sizes are clamped to [MinSide, MaxSide].
//
// # Errors
//
//   - ErrInvalidArgument if Data is shorter than HeaderFieldsSize, a
//     dimension is negative, no size can be determined, or Bounds is invalid
//   - ErrAllocation if the pixel buffer cannot be allocated
func (s *Store) Create(opts CreateOptions) (*Image, error) {
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("%w: negative image size %dx%d", ErrInvalidArgument, opts.Width, opts.Height)
	}
	if opts.Data != nil && len(opts.Data) < HeaderFieldsSize {
		return nil, fmt.Errorf("%w: %d data bytes is less than the %d byte minimum",
			ErrInvalidArgument, len(opts.Data), HeaderFieldsSize)
	}

	width, height := opts.Width, opts.Height
	var hdr *Header
	if opts.TryHeader && opts.Data != nil {
		h, err := DecodeHeader(opts.Data, Header{Width: width, Height: height})
		if err != nil {
			return nil, err
		}
		if h.Valid {
			hdr = &h
			width, height = h.Width, h.Height
		}
	}
	if hdr == nil {
		var err error
		width, height, err = inferSize(width, height, len(opts.Data))
		if err != nil {
			return nil, err
		}
	}

	img, err := newImage(opts.Name, clampSide(width), clampSide(height))
	if err != nil {
		return nil, err
	}
	copy(img.pix, opts.Data)

	switch {
	case opts.Bounds != nil:
		if err := img.SetBounds(*opts.Bounds); err != nil {
			return nil, err
		}
	case hdr != nil:
		img.bounds = clipBounds(hdr.Bounds, img.width, img.height)
	}
	if hdr != nil {
		img.SetResults(hdr.Results)
	}
	if opts.Results != "" {
		img.SetResults(opts.Results)
	}

	s.register(img)
	return img, nil
}

// inferSize resolves missing dimensions from a data length.
func inferSize(width, height, n int) (int, int, error) {
	switch {
	case width > 0 && height > 0:
		return width, height, nil
	case n == 0:
		return 0, 0, fmt.Errorf("%w: image size %dx%d with no data", ErrInvalidArgument, width, height)
	case width > 0:
		return width, (n + width - 1) / width, nil
	case height > 0:
		return (n + height - 1) / height, height, nil
	default:
		side := int(math.Ceil(math.Sqrt(float64(n))))
		for side*side < n {
			side++
		}
		return side, side, nil
	}
}

// register inserts img, replacing any image of the same name.
func (s *Store) register(img *Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img.name == "" {
		img.name = s.nextName()
	}
	if _, ok := s.images[img.name]; ok {
		s.log.WithField("name", img.name).Debug("Replacing existing image")
	}
	s.images[img.name] = img
	s.log.WithFields(logrus.Fields{
		"name":   img.name,
		"width":  img.width,
		"height": img.height,
	}).Debug("Created image")
}

// nextName returns an unused generated name. Caller holds s.mu.
func (s *Store) nextName() string {
	for {
		s.serial++
		name := fmt.Sprintf("img%d", s.serial)
		if _, ok := s.images[name]; !ok {
			return name
		}
	}
}

// Lookup returns the image registered under name.
func (s *Store) Lookup(name string) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: image %q", ErrNotFound, name)
	}
	return img, nil
}

// List returns the sorted names matching a glob pattern. The pattern
// supports '*', '?' and '[...]' classes; "*" lists everything.
func (s *Store) List(pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidArgument, pattern, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.images))
	for name := range s.images {
		if ok, _ := path.Match(pattern, name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DestroyMatching removes every image whose name matches pattern and
// returns how many were removed. Matching nothing is not an error.
func (s *Store) DestroyMatching(pattern string) (int, error) {
	names, err := s.List(pattern)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.images, name)
		s.log.WithField("name", name).Debug("Destroyed image")
	}
	return len(names), nil
}

// Rename moves an image to a new name, destroying any image already there.
func (s *Store) Rename(oldName, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: empty image name", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[oldName]
	if !ok {
		return fmt.Errorf("%w: image %q", ErrNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	delete(s.images, oldName)
	img.name = newName
	s.images[newName] = img
	s.log.WithFields(logrus.Fields{"from": oldName, "to": newName}).Debug("Renamed image")
	return nil
}

// Len returns the number of registered images.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Load decodes an image file, converts it to 8-bit grey and registers it
// under name. Supported formats are PNG, JPEG, GIF, TIFF and BMP. With
// tryHeader set, a header stored in row 0 (as written by Save) restores the
// analysis bounds and results.
//
// Files larger than MaxSide are rejected; smaller than MinSide are padded
// with zero pixels.
func (s *Store) Load(filePath, name string, tryHeader bool) (*Image, error) {
	src, err := imaging.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	b := src.Bounds()
	if b.Dx() > MaxSide || b.Dy() > MaxSide {
		return nil, fmt.Errorf("%w: %s is %dx%d, larger than %d", ErrInvalidArgument, filePath, b.Dx(), b.Dy(), MaxSide)
	}

	img, err := newImage(name, clampSide(b.Dx()), clampSide(b.Dy()))
	if err != nil {
		return nil, err
	}
	grey := imaging.Grayscale(src)
	for y := 0; y < b.Dy(); y++ {
		row := grey.Pix[y*grey.Stride:]
		for x := 0; x < b.Dx(); x++ {
			img.pix[y*img.width+x] = row[4*x]
		}
	}
	if tryHeader {
		if err := ApplyHeader(img); err != nil {
			return nil, err
		}
	}

	s.register(img)
	return img, nil
}

// Save writes the named image to a grey PNG (or any format selected by the
// file extension) with its header encoded into row 0 of the file. The image
// in the store is not modified.
func (s *Store) Save(name, filePath string) error {
	img, err := s.Lookup(name)
	if err != nil {
		return err
	}
	out := img.Gray()
	putHeaderRow(out.Pix[:img.width], HeaderOf(img))
	if err := imaging.Save(out, filePath); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// Copy registers a deep copy of src under name.
func (s *Store) Copy(src *Image, name string) (*Image, error) {
	img, err := newImage(name, src.width, src.height)
	if err != nil {
		return nil, err
	}
	copy(img.pix, src.pix)
	img.bounds = src.bounds
	img.results = src.results
	s.register(img)
	return img, nil
}

// fromGray builds an unregistered image from a grey raster.
func fromGray(name string, g *image.Gray) (*Image, error) {
	b := g.Bounds()
	img, err := newImage(name, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.Dy(); y++ {
		copy(img.pix[y*img.width:(y+1)*img.width], g.Pix[y*g.Stride:y*g.Stride+b.Dx()])
	}
	return img, nil
}
