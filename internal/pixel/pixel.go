// Package pixel converts between RGB888 and big-endian RGB565, the two
// pixel representations the streaming core moves frames between: capture
// delivers RGB888 (by way of RGBA), the wire protocol carries RGB565 BE.
package pixel

// BytesPerPixel is the size in bytes of one RGB565 pixel on the wire.
const BytesPerPixel = 2

var (
	expand5 [32]uint8
	expand6 [64]uint8
)

func init() {
	for i := range expand5 {
		expand5[i] = uint8(i * 255 / 31)
	}
	for i := range expand6 {
		expand6[i] = uint8(i * 255 / 63)
	}
}

// RGB888ToRGB565BE converts an RGB888 buffer (3 bytes per pixel, r,g,b) of
// w*h pixels to a big-endian RGB565 buffer of length 2*w*h. src must hold
// at least 3*w*h bytes; it is read only, never mutated.
func RGB888ToRGB565BE(src []byte, w, h int) []byte {
	n := w * h
	out := make([]byte, n*BytesPerPixel)
	for i := 0; i < n; i++ {
		r := src[i*3]
		g := src[i*3+1]
		b := src[i*3+2]
		v := (uint16(r&0xF8) << 8) | (uint16(g&0xFC) << 3) | uint16(b>>3)
		out[i*2] = byte(v >> 8)
		out[i*2+1] = byte(v)
	}
	return out
}

// RGB565ToRGB888 expands one big-endian RGB565 pixel value to 8-bit-per
// channel RGB using the standard 5->8 and 6->8 expansions.
func RGB565ToRGB888(p uint16) (r, g, b uint8) {
	r5 := uint8((p >> 11) & 0x1F)
	g6 := uint8((p >> 5) & 0x3F)
	b5 := uint8(p & 0x1F)
	return expand5[r5], expand6[g6], expand5[b5]
}

// DecodeBE reads one big-endian RGB565 pixel from a 2-byte slice.
func DecodeBE(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// RGBAToRGB565BE converts an RGBA buffer (4 bytes per pixel, r,g,b,a) of
// srcW*srcH pixels to a big-endian RGB565 buffer of dstW*dstH pixels,
// nearest-neighbour resampling and dropping alpha in the same pass. This
// is the host loop's capture -> resize -> convert step (§4.4.1 point 2).
func RGBAToRGB565BE(src []byte, srcW, srcH, dstW, dstH int) []byte {
	out := make([]byte, dstW*dstH*BytesPerPixel)
	if srcW == 0 || srcH == 0 || dstW == 0 || dstH == 0 {
		return out
	}
	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			si := (sy*srcW + sx) * 4
			r := src[si]
			g := src[si+1]
			b := src[si+2]
			v := (uint16(r&0xF8) << 8) | (uint16(g&0xFC) << 3) | uint16(b>>3)
			di := (y*dstW + x) * 2
			out[di] = byte(v >> 8)
			out[di+1] = byte(v)
		}
	}
	return out
}

// CompositeCursorRGBA draws a small filled square cursor marker into an
// RGBA buffer at (x,y), clipped to the buffer bounds, used by the host
// loop to composite the cursor before resize/convert (§4.4.1 point 1).
func CompositeCursorRGBA(rgba []byte, w, h, x, y, size int, r, g, b byte) {
	for dy := 0; dy < size; dy++ {
		py := y + dy
		if py < 0 || py >= h {
			continue
		}
		for dx := 0; dx < size; dx++ {
			px := x + dx
			if px < 0 || px >= w {
				continue
			}
			i := (py*w + px) * 4
			rgba[i] = r
			rgba[i+1] = g
			rgba[i+2] = b
			rgba[i+3] = 0xFF
		}
	}
}
