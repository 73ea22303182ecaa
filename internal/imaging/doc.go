// Package imaging holds the named greyscale images that the spot tools
// analyse, together with their metadata header, statistics, overlay and
// whole-image manipulations.
//
// # Images
//
// An Image is an 8-bit intensity raster stored row-major with one byte per
// pixel. Row 0 is reserved for the metadata header: a 12-byte block of
// big-endian fields (width, height and the analysis bounds) followed by a
// NUL-terminated results string of at most MaxResultsLength bytes. The
// header never leaves row 0: on images narrower than HeaderSize the stored
// results text is cut to the row, and images narrower than HeaderFieldsSize
// carry no header at all. Every byte after row 0 is the data space read and
// written by ReadData and WriteData.
//
// # Coordinate System
//
// Pixel (x, y) has its top-left corner at (x, y) and its centre at
// (x+0.5, y+0.5). Regions are image.Rectangle values, half-open on the right
// and bottom. Bounds is the inclusive form used on the wire and in the
// header, and converts with Bounds.Rect and BoundsFromRect.
//
// The analysis bounds of a new image cover every row but the first. An
// empty region passed to Region, Stats or the detection package selects
// these bounds.
//
// # Store
//
// Store is the registry of images by name and is safe for concurrent use.
// Create clamps sizes to [MinSide, MaxSide] and generates "imgN" names when
// none is given. List and DestroyMatching take path.Match glob patterns.
// Load decodes PNG, JPEG, GIF, BMP and TIFF files to grey and, unless asked
// not to, trusts a valid header found in the first row. Save writes the
// header before encoding so the file can be reloaded with its bounds and
// results intact.
//
// # Overlay
//
// Each image carries an optional RGBA overlay used for annotation. Drawing
// on the overlay never changes pixel intensities. Composite and Export
// merge the two planes for display.
//
// # Error Handling
//
// Failures wrap one of the sentinel errors (ErrNotFound, ErrInvalidArgument,
// ErrOutOfRange, ErrAllocation) so callers can classify them with
// errors.Is.
package imaging
