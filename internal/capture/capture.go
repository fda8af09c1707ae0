// Package capture defines the external collaborator contract a host
// transport loop captures frames from (§6 ScreenCapture). No
// platform-specific implementation lives in this module; per-OS screen
// capture internals are an explicit spec non-goal.
package capture

// Source captures the current screen contents and cursor position. A
// Source is expected to return within roughly 30ms for interactive
// frame rates; transient errors are retried by the caller rather than
// treated as fatal.
type Source interface {
	// Capture returns the current screen as an RGBA buffer of size
	// 4*width*height, row-major, top-left origin.
	Capture() (rgba []byte, width, height int, err error)

	// MousePosition returns the current cursor position in the same
	// coordinate space as Capture, or ok=false if the cursor is not
	// currently over the captured surface.
	MousePosition() (x, y int, ok bool)
}
