package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/kbinani/screenshot"
)

// Region is a capture rectangle in virtual-screen coordinates. On
// multi-monitor setups the virtual origin is not necessarily (0,0); the
// overlay adds its display offset before handing a Region to us.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Valid reports whether the region satisfies the capture invariant:
// positive extent and a non-negative normalized origin.
func (r Region) Valid() bool {
	return r.Width >= 1 && r.Height >= 1 && r.X >= 0 && r.Y >= 0
}

func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Scale multiplies the region by a display scaling factor. Used when
// automatic DPI scaling is disabled and a manual factor list is configured.
func (r Region) Scale(factor float64) Region {
	if factor <= 0 || factor == 1.0 {
		return r
	}
	return Region{
		X:      int(float64(r.X) * factor),
		Y:      int(float64(r.Y) * factor),
		Width:  int(float64(r.Width) * factor),
		Height: int(float64(r.Height) * factor),
	}
}

func Init() {
	// Nothing to initialize today; kept for symmetry with other packages.
}

// Grab captures the pixels of a region. It is synchronous and expected to be
// fast relative to UI responsiveness; any failure means no payload is
// produced downstream.
func Grab(region Region) (*image.RGBA, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	img, err := screenshot.CaptureRect(region.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %v", err)
	}
	return img, nil
}

// NumDisplays returns the number of active displays.
func NumDisplays() int {
	return screenshot.NumActiveDisplays()
}

// DisplayBounds returns the bounds of display i on the virtual canvas.
func DisplayBounds(i int) image.Rectangle {
	return screenshot.GetDisplayBounds(i)
}

// VirtualBounds returns the bounding box of all active displays. The
// top-left corner may be negative when a secondary display sits left of or
// above the primary one.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// DisplayIndexAt returns the index of the display containing the point, or 0
// when no display contains it.
func DisplayIndexAt(x, y int) int {
	n := screenshot.NumActiveDisplays()
	for i := 0; i < n; i++ {
		if image.Pt(x, y).In(screenshot.GetDisplayBounds(i)) {
			return i
		}
	}
	return 0
}

// EncodeStill encodes a grabbed frame as the configured still-image format.
// Supported formats are "png" (default) and "jpg".
func EncodeStill(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("failed to encode image as JPEG: %v", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode image as PNG: %v", err)
		}
	}
	return buf.Bytes(), nil
}
