package pixel

import "testing"

func TestRGB888ToRGB565BE(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    uint16
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 0xFFFF},
		{"red", 255, 0, 0, 0xF800},
		{"green", 0, 255, 0, 0x07E0},
		{"blue", 0, 0, 255, 0x001F},
		{"truncation", 0x07, 0x03, 0x07, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RGB888ToRGB565BE([]byte{tt.r, tt.g, tt.b}, 1, 1)
			if len(out) != 2 {
				t.Fatalf("len = %d, want 2", len(out))
			}
			got := DecodeBE(out)
			if got != tt.want {
				t.Fatalf("got %#04x, want %#04x", got, tt.want)
			}
		})
	}
}

func TestRGB888ToRGB565BELength(t *testing.T) {
	w, h := 7, 5
	src := make([]byte, w*h*3)
	out := RGB888ToRGB565BE(src, w, h)
	if len(out) != 2*w*h {
		t.Fatalf("len = %d, want %d", len(out), 2*w*h)
	}
}

func TestRGB565ToRGB888Roundtrip(t *testing.T) {
	for _, p := range []uint16{0x0000, 0xFFFF, 0xF800, 0x07E0, 0x001F, 0x1234, 0xABCD} {
		r, g, b := RGB565ToRGB888(p)
		back := RGB888ToRGB565BE([]byte{r, g, b}, 1, 1)
		got := DecodeBE(back)
		if got != p {
			t.Fatalf("roundtrip %#04x -> rgb(%d,%d,%d) -> %#04x", p, r, g, b, got)
		}
	}
}

func TestRGBAToRGB565BESameSize(t *testing.T) {
	w, h := 2, 2
	src := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		src[i*4] = 0xFF // red, full alpha
		src[i*4+3] = 0xFF
	}
	out := RGBAToRGB565BE(src, w, h, w, h)
	if len(out) != 2*w*h {
		t.Fatalf("len = %d, want %d", len(out), 2*w*h)
	}
	for i := 0; i < w*h; i++ {
		got := DecodeBE(out[i*2 : i*2+2])
		if got != 0xF800 {
			t.Fatalf("pixel %d = %#04x, want 0xF800", i, got)
		}
	}
}

func TestRGBAToRGB565BEDownscale(t *testing.T) {
	srcW, srcH := 4, 4
	src := make([]byte, srcW*srcH*4)
	for i := 0; i < srcW*srcH; i++ {
		src[i*4+2] = 0xFF // blue
		src[i*4+3] = 0xFF
	}
	out := RGBAToRGB565BE(src, srcW, srcH, 2, 2)
	if len(out) != 2*2*2 {
		t.Fatalf("len = %d, want %d", len(out), 8)
	}
	if DecodeBE(out[0:2]) != 0x001F {
		t.Fatalf("got %#04x, want 0x001F", DecodeBE(out[0:2]))
	}
}

func TestCompositeCursorRGBAClips(t *testing.T) {
	w, h := 4, 4
	rgba := make([]byte, w*h*4)
	CompositeCursorRGBA(rgba, w, h, 2, 2, 4, 0xFF, 0, 0) // size 4 at (2,2) overruns bounds
	i := (2*w + 2) * 4
	if rgba[i] != 0xFF || rgba[i+3] != 0xFF {
		t.Fatalf("cursor pixel not drawn at (2,2)")
	}
}

func TestRGB565ToRGB888Arithmetic(t *testing.T) {
	for r5 := uint16(0); r5 < 32; r5++ {
		p := r5 << 11
		r, _, _ := RGB565ToRGB888(p)
		want := uint8(r5 * 255 / 31)
		if r != want {
			t.Fatalf("r5=%d got %d want %d", r5, r, want)
		}
	}
	for g6 := uint16(0); g6 < 64; g6++ {
		p := g6 << 5
		_, g, _ := RGB565ToRGB888(p)
		want := uint8(g6 * 255 / 63)
		if g != want {
			t.Fatalf("g6=%d got %d want %d", g6, g, want)
		}
	}
}
