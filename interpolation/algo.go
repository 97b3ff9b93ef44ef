package interpolation

import "github.com/osfg-go/framegen/opticalflow"

// Config describes the geometry of one interpolation dispatch,
// mirroring the constant buffer described by spec.md §4.5.
type Config struct {
	Width, Height int
	// MotionScale converts a stored motion vector (fixed-point,
	// 1/16th of a pixel) to pixel units. It is always 1/16 in this
	// pipeline but is threaded through explicitly, matching the
	// constant buffer layout, rather than hardcoded in the kernel.
	MotionScale float32
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sampleBilinear reads a BGRA8-UNORM pixel at normalized coordinates
// uv ∈ [0,1]^2 from a row-major image, using clamp-to-edge addressing
// and bilinear filtering — the software equivalent of
// Texture2D.SampleLevel with a linear, clamp sampler.
func sampleBilinear(buf []byte, stride, width, height int, u, v float32) (r, g, b, a float32) {
	fx := u*float32(width) - 0.5
	fy := v*float32(height) - 0.5
	x0 := int(floor32(fx))
	y0 := int(floor32(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	x0c := clampInt(x0, 0, width-1)
	x1c := clampInt(x0+1, 0, width-1)
	y0c := clampInt(y0, 0, height-1)
	y1c := clampInt(y0+1, 0, height-1)

	b00, g00, r00, a00 := readPixel(buf, stride, x0c, y0c)
	b10, g10, r10, a10 := readPixel(buf, stride, x1c, y0c)
	b01, g01, r01, a01 := readPixel(buf, stride, x0c, y1c)
	b11, g11, r11, a11 := readPixel(buf, stride, x1c, y1c)

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	bTop, bBot := lerp(b00, b10, tx), lerp(b01, b11, tx)
	gTop, gBot := lerp(g00, g10, tx), lerp(g01, g11, tx)
	rTop, rBot := lerp(r00, r10, tx), lerp(r01, r11, tx)
	aTop, aBot := lerp(a00, a10, tx), lerp(a01, a11, tx)

	return lerp(rTop, rBot, ty), lerp(gTop, gBot, ty), lerp(bTop, bBot, ty), lerp(aTop, aBot, ty)
}

func readPixel(buf []byte, stride, x, y int) (b, g, r, a float32) {
	off := y*stride + x*4
	return float32(buf[off]) / 255, float32(buf[off+1]) / 255, float32(buf[off+2]) / 255, float32(buf[off+3]) / 255
}

func floor32(v float32) float32 {
	i := float32(int(v))
	if v < 0 && i != v {
		return i - 1
	}
	return i
}

// WarpBlend runs the per-pixel bilinear-warp interpolation described
// by spec.md §4.5 over the full output image, writing BGRA8-UNORM
// pixels into out (row-major, stride outStride).
func WarpBlend(previous, current []byte, prevStride, currStride int, motion []byte, motionStride int, cfg Config, mvW, mvH int, t float32, out []byte, outStride int) {
	w, h := cfg.Width, cfg.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			u := (float32(x) + 0.5) / float32(w)
			v := (float32(y) + 0.5) / float32(h)

			mvx := clampInt(int(u*float32(mvW)), 0, mvW-1)
			mvy := clampInt(int(v*float32(mvH)), 0, mvH-1)
			vec := opticalflow.ReadVector(motion, motionStride, mvx, mvy)

			mx := float32(vec.X) * cfg.MotionScale
			my := float32(vec.Y) * cfg.MotionScale
			muX := mx / float32(w)
			muY := my / float32(h)

			prevU := clamp01(u - muX*(1-t))
			prevV := clamp01(v - muY*(1-t))
			currU := clamp01(u + muX*t)
			currV := clamp01(v + muY*t)

			pr, pg, pb, _ := sampleBilinear(previous, prevStride, w, h, prevU, prevV)
			cr, cg, cb, _ := sampleBilinear(current, currStride, w, h, currU, currV)

			outB := pb*(1-t) + cb*t
			outG := pg*(1-t) + cg*t
			outR := pr*(1-t) + cr*t

			off := y*outStride + x*4
			out[off] = toByte(outB)
			out[off+1] = toByte(outG)
			out[off+2] = toByte(outR)
			out[off+3] = 255
		}
	}
}

func toByte(v float32) byte {
	v = v*255 + 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
