package opticalflow

import "math"

// Vector is a motion vector: a displacement, in pixel units scaled by
// 16, from a Current block toward the location in Previous that best
// explains the block's luminance.
type Vector struct {
	X, Y int16
}

// Config describes the geometry and search parameters of a motion
// estimation pass. It is written once into the GPU constant buffer at
// init and mirrored here for the CPU reference algorithm.
type Config struct {
	Width, Height int
	// BlockSize (B) must be in [4,32].
	BlockSize int
	// SearchRadius (R) must be <= 16. 0 collapses the search to the
	// zero vector.
	SearchRadius int
}

// MVSize returns the motion field's dimensions, ⌈W/B⌉ × ⌈H/B⌉.
func (c Config) MVSize() (mvW, mvH int) {
	b := c.BlockSize
	mvW = (c.Width + b - 1) / b
	mvH = (c.Height + b - 1) / b
	return
}

// luminance709 converts a BGRA8-UNORM pixel's 8-bit color channels to
// BT.709 luminance, normalized to [0,255].
func luminance709(b, g, r byte) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

// sampleLuma reads the BT.709 luminance of the BGRA8 pixel at (x,y)
// in a row-major buffer with the given stride.
func sampleLuma(buf []byte, stride, x, y int) float64 {
	off := y*stride + x*4
	return luminance709(buf[off], buf[off+1], buf[off+2])
}

// blockSAD sums the absolute luminance difference over an effW x
// effH block, with curOrigin/prevOrigin as the block's top-left
// corner in each buffer. Both origins, plus the effective extent,
// must already be guaranteed in-bounds by the caller.
func blockSAD(cur []byte, curStride, curX, curY int, prev []byte, prevStride, prevX, prevY int, effW, effH int) float64 {
	sad := 0.0
	for y := 0; y < effH; y++ {
		for x := 0; x < effW; x++ {
			cl := sampleLuma(cur, curStride, curX+x, curY+y)
			pl := sampleLuma(prev, prevStride, prevX+x, prevY+y)
			sad += math.Abs(cl - pl)
		}
	}
	return sad
}

// candidateValid reports whether a search offset keeps the matched
// block fully inside the previous image, using the block's effective
// (possibly edge-clipped) extent.
func candidateValid(blockX, blockY, dx, dy, effW, effH, width, height int) bool {
	sx, sy := blockX+dx, blockY+dy
	return sx >= 0 && sy >= 0 && sx+effW <= width && sy+effH <= height
}

// offset is a search candidate; ties are broken lexicographically
// over (dy, dx), i.e. by the order the search loops visit candidates
// (dy outer, dx inner).
type offset struct{ dx, dy int }

// bestMotionVector runs the three-step search (spec step 4) and its
// refinement (step 5) for one block. The zero vector is always a
// valid candidate (the block's own nominal position trivially
// satisfies candidateValid), so it is evaluated first and used as the
// tie-break default: later candidates only replace it on a strictly
// smaller SAD. This is what makes a uniform or unchanged block
// resolve to (0,0) instead of to an arbitrary equal-cost offset.
func bestMotionVector(cur []byte, curStride int, prev []byte, prevStride int, cfg Config, blockX, blockY, effW, effH int) (offset, float64) {
	width, height := cfg.Width, cfg.Height
	radius := cfg.SearchRadius

	eval := func(dx, dy int) (float64, bool) {
		if dx < -radius || dx > radius || dy < -radius || dy > radius {
			return 0, false
		}
		if !candidateValid(blockX, blockY, dx, dy, effW, effH, width, height) {
			return 0, false
		}
		return blockSAD(cur, curStride, blockX, blockY, prev, prevStride, blockX+dx, blockY+dy, effW, effH), true
	}

	bestSAD, _ := eval(0, 0)
	best := offset{0, 0}

	if radius <= 0 {
		return best, bestSAD
	}

	step := radius / 2
	if step < 1 {
		step = 1
	}
	center := offset{0, 0}
	for step >= 1 {
		localBestSAD := math.Inf(1)
		localBest := center
		localFound := false
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				cx, cy := center.dx+step*dx, center.dy+step*dy
				sad, ok := eval(cx, cy)
				if !ok {
					continue
				}
				if sad < localBestSAD {
					localBestSAD, localBest, localFound = sad, offset{cx, cy}, true
				}
				if sad < bestSAD {
					bestSAD, best = sad, offset{cx, cy}
				}
			}
		}
		if localFound {
			center = localBest
		}
		step /= 2
	}

	// Refinement: the 8 immediate neighbours of center.
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			sad, ok := eval(center.dx+dx, center.dy+dy)
			if ok && sad < bestSAD {
				bestSAD, best = sad, offset{center.dx + dx, center.dy + dy}
			}
		}
	}

	return best, bestSAD
}

// SADStats summarizes the per-block SAD costs of one
// ComputeMotionField call, used to detect a scene cut: a high mean
// SAD means the two frames share little structure anywhere, which a
// per-block motion search cannot explain away with any offset.
type SADStats struct {
	TotalSAD   float64
	BlockCount int
}

// ComputeMotionField runs block matching over the full current/
// previous pair and writes the resulting motion field, encoded as
// interleaved little-endian int16 (dx,dy) pairs scaled by 16, into mv
// (row-major, stride mvStride bytes).
func ComputeMotionField(cur, prev []byte, curStride, prevStride int, cfg Config, mv []byte, mvStride int) SADStats {
	mvW, mvH := cfg.MVSize()
	b := cfg.BlockSize

	var stats SADStats
	for by := 0; by < mvH; by++ {
		blockY := by * b
		effH := b
		if blockY+effH > cfg.Height {
			effH = cfg.Height - blockY
		}
		for bx := 0; bx < mvW; bx++ {
			blockX := bx * b
			effW := b
			if blockX+effW > cfg.Width {
				effW = cfg.Width - blockX
			}

			best, sad := bestMotionVector(cur, curStride, prev, prevStride, cfg, blockX, blockY, effW, effH)
			stats.TotalSAD += sad
			stats.BlockCount++
			vx, vy := int16(best.dx*16), int16(best.dy*16)
			off := by*mvStride + bx*4
			mv[off] = byte(vx)
			mv[off+1] = byte(vx >> 8)
			mv[off+2] = byte(vy)
			mv[off+3] = byte(vy >> 8)
		}
	}
	return stats
}

// ReadVector reads one (dx,dy) pair from a motion field buffer
// produced by ComputeMotionField.
func ReadVector(mv []byte, mvStride, x, y int) Vector {
	off := y*mvStride + x*4
	vx := int16(uint16(mv[off]) | uint16(mv[off+1])<<8)
	vy := int16(uint16(mv[off+2]) | uint16(mv[off+3])<<8)
	return Vector{X: vx, Y: vy}
}
