package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// ExportResult contains a composite of an image and its overlay.
type ExportResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Composite returns the grey pixels with the overlay drawn over them.
func Composite(img *Image) *image.NRGBA {
	out := image.NewNRGBA(img.Rect())
	draw.Draw(out, out.Rect, img.Gray(), image.Point{}, draw.Src)
	if img.overlay != nil {
		draw.Draw(out, out.Rect, img.overlay, image.Point{}, draw.Over)
	}
	return out
}

// Export encodes the composite of img as a base64 PNG, scaled by zoom with
// nearest-neighbour sampling so individual pixels stay visible. A zoom of
// zero or one leaves the size unchanged.
func Export(img *Image, zoom float64) (*ExportResult, error) {
	var out image.Image = Composite(img)
	if zoom > 0 && zoom != 1 {
		w := int(float64(img.width) * zoom)
		h := int(float64(img.height) * zoom)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("%w: zoom %g shrinks image to nothing", ErrInvalidArgument, zoom)
		}
		scaled := image.NewNRGBA(image.Rect(0, 0, w, h))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Rect, out, out.Bounds(), xdraw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &ExportResult{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
