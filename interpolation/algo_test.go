package interpolation

import "testing"

func makeSolid(w, h int, r, g, b byte) []byte {
	stride := w * 4
	buf := make([]byte, stride*h)
	for i := 0; i < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = b, g, r, 255
	}
	return buf
}

func zeroMotion(mvW, mvH int) []byte {
	return make([]byte, mvW*4*mvH)
}

func TestWarpBlendNoMotionMidpoint(t *testing.T) {
	const w, h = 16, 16
	prev := makeSolid(w, h, 0, 0, 0)
	curr := makeSolid(w, h, 255, 255, 255)
	mvW, mvH := 2, 2
	motion := zeroMotion(mvW, mvH)
	out := make([]byte, w*4*h)

	cfg := Config{Width: w, Height: h, MotionScale: 1.0 / 16.0}
	WarpBlend(prev, curr, w*4, w*4, motion, mvW*4, cfg, mvW, mvH, 0.5, out, w*4)

	// With zero motion, every sample resolves to its own pixel,
	// so the output must be an exact 50/50 blend of black and white.
	for i := 0; i < len(out); i += 4 {
		for c := 0; c < 3; c++ {
			if got := out[i+c]; got < 126 || got > 129 {
				t.Fatalf("pixel channel at byte %d:\nhave %v\nwant ~127", i+c, got)
			}
		}
		if out[i+3] != 255 {
			t.Fatalf("alpha at byte %d:\nhave %v\nwant 255", i+3, out[i+3])
		}
	}
}

func TestWarpBlendPhaseZeroIsPrevious(t *testing.T) {
	const w, h = 8, 8
	prev := makeSolid(w, h, 10, 20, 30)
	curr := makeSolid(w, h, 200, 210, 220)
	mvW, mvH := 1, 1
	motion := zeroMotion(mvW, mvH)
	out := make([]byte, w*4*h)

	cfg := Config{Width: w, Height: h, MotionScale: 1.0 / 16.0}
	WarpBlend(prev, curr, w*4, w*4, motion, mvW*4, cfg, mvW, mvH, 0, out, w*4)

	for i := 0; i < len(out); i += 4 {
		if out[i] != 30 || out[i+1] != 20 || out[i+2] != 10 {
			t.Fatalf("pixel at byte %d:\nhave BGR(%v,%v,%v)\nwant BGR(30,20,10)", i, out[i], out[i+1], out[i+2])
		}
	}
}

func TestWarpBlendPhaseOneIsCurrent(t *testing.T) {
	const w, h = 8, 8
	prev := makeSolid(w, h, 10, 20, 30)
	curr := makeSolid(w, h, 200, 210, 220)
	mvW, mvH := 1, 1
	motion := zeroMotion(mvW, mvH)
	out := make([]byte, w*4*h)

	cfg := Config{Width: w, Height: h, MotionScale: 1.0 / 16.0}
	WarpBlend(prev, curr, w*4, w*4, motion, mvW*4, cfg, mvW, mvH, 1, out, w*4)

	for i := 0; i < len(out); i += 4 {
		if out[i] != 220 || out[i+1] != 210 || out[i+2] != 200 {
			t.Fatalf("pixel at byte %d:\nhave BGR(%v,%v,%v)\nwant BGR(220,210,200)", i, out[i], out[i+1], out[i+2])
		}
	}
}
