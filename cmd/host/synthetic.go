package main

// syntheticSource is a stand-in capture.Source that produces a moving
// test-card image. Real per-OS screen capture is out of scope for this
// module (§6 Non-goals); this exists so the host binary has something
// to stream without wiring a platform capture backend.
type syntheticSource struct {
	width, height int
	tick          int
}

func newSyntheticSource() *syntheticSource {
	return &syntheticSource{width: 240, height: 240}
}

func (s *syntheticSource) Capture() (rgba []byte, width, height int, err error) {
	s.tick++
	buf := make([]byte, 4*s.width*s.height)
	bar := (s.tick * 4) % s.width
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			o := 4 * (y*s.width + x)
			switch {
			case x == bar:
				buf[o], buf[o+1], buf[o+2], buf[o+3] = 0xFF, 0xFF, 0xFF, 0xFF
			default:
				buf[o], buf[o+1], buf[o+2], buf[o+3] = byte(x), byte(y), byte(s.tick), 0xFF
			}
		}
	}
	return buf, s.width, s.height, nil
}

func (s *syntheticSource) MousePosition() (x, y int, ok bool) {
	return 0, 0, false
}
