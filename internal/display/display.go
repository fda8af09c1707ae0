// Package display applies decoded RGB565 pixel regions to a physical
// or simulated screen.
package display

import "github.com/pkg/errors"

// InclusiveEndCoords records a controller quirk: some panel controllers
// take a window's end column/row as inclusive rather than exclusive.
// This codebase's own
// Blitter implementations always treat x,y,w,h as origin+extent
// (exclusive end), so InclusiveEndCoords is carried only as a constant
// a real panel driver would consult when translating that window into
// its own command sequence; it is not consumed anywhere in this
// package.
const InclusiveEndCoords = false

// Blitter writes a rectangular region of RGB565 pixels (big-endian,
// row-major) to a display surface.
type Blitter interface {
	// BlitRGB565 writes w*h pixels (2*w*h bytes) to the rectangle with
	// top-left corner (x,y) and the given width and height.
	BlitRGB565(x, y, w, h int, pixels []byte) error

	// Dimensions reports the surface's full width and height, for
	// callers (e.g. the legacy no-geometry-header payload path) that
	// need to blit a full frame without a wire-carried size.
	Dimensions() (w, h int)
}

// FramebufferBlitter is an in-memory Blitter backed by a single
// 2*Width*Height-byte buffer, used by tests and by the USB/WebSocket
// device loops when no physical panel is attached (e.g. under replay).
type FramebufferBlitter struct {
	Width, Height int
	buf           []byte
}

// NewFramebufferBlitter creates a FramebufferBlitter sized for a
// Width x Height RGB565 surface, initialised to all zero pixels.
func NewFramebufferBlitter(width, height int) *FramebufferBlitter {
	return &FramebufferBlitter{Width: width, Height: height, buf: make([]byte, 2*width*height)}
}

// BlitRGB565 copies pixels into the framebuffer at (x,y), bounds-checked
// against Width/Height.
func (f *FramebufferBlitter) BlitRGB565(x, y, w, h int, pixels []byte) error {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > f.Width || y+h > f.Height {
		return errors.Errorf("display: rect (%d,%d,%d,%d) out of bounds for %dx%d surface", x, y, w, h, f.Width, f.Height)
	}
	if len(pixels) != 2*w*h {
		return errors.Errorf("display: expected %d pixel bytes, got %d", 2*w*h, len(pixels))
	}
	rowBytes := 2 * w
	for row := 0; row < h; row++ {
		dstOff := 2 * ((y+row)*f.Width + x)
		srcOff := row * rowBytes
		copy(f.buf[dstOff:dstOff+rowBytes], pixels[srcOff:srcOff+rowBytes])
	}
	return nil
}

// Snapshot returns a copy of the full framebuffer contents.
func (f *FramebufferBlitter) Snapshot() []byte {
	return append([]byte(nil), f.buf...)
}

// Dimensions reports the framebuffer's fixed width and height.
func (f *FramebufferBlitter) Dimensions() (w, h int) {
	return f.Width, f.Height
}
