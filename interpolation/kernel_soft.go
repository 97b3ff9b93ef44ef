package interpolation

import (
	"errors"
	"math"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
)

func init() {
	soft.RegisterKernel(KernelName, dispatchSoft)
}

func dispatchSoft(heaps []*soft.DescHeap, heapCopy []int, groupCountX, groupCountY, groupCountZ int) error {
	cbuf, _, cbufSize := soft.LookupBuffer(heaps, heapCopy, driver.DConstant, regConstants)
	if cbuf == nil || cbufSize < 24 {
		return errors.New("interpolation: constant buffer not bound")
	}
	cfg, mvW, mvH, t := readConstants(cbuf.Bytes())

	prev := soft.LookupImage(heaps, heapCopy, driver.DTexture, regPrevious)
	curr := soft.LookupImage(heaps, heapCopy, driver.DTexture, regCurrent)
	motion := soft.LookupImage(heaps, heapCopy, driver.DTexture, regMotion)
	out := soft.LookupImage(heaps, heapCopy, driver.DImage, regOutput)
	if prev == nil || curr == nil || motion == nil || out == nil {
		return errors.New("interpolation: input or output image not bound")
	}

	wantX := (cfg.Width + 15) / 16
	wantY := (cfg.Height + 15) / 16
	if wantX != groupCountX || wantY != groupCountY || groupCountZ != 1 {
		return errors.New("interpolation: dispatch size does not match output geometry")
	}

	WarpBlend(prev.Pixels(), curr.Pixels(), prev.Stride(), curr.Stride(), motion.Pixels(), motion.Stride(), cfg, mvW, mvH, t, out.Pixels(), out.Stride())
	return nil
}

func readConstants(b []byte) (cfg Config, mvW, mvH int, t float32) {
	cfg.Width = int(getU32(b[0:4]))
	cfg.Height = int(getU32(b[4:8]))
	mvW = int(getU32(b[8:12]))
	mvH = int(getU32(b[12:16]))
	t = math.Float32frombits(getU32(b[16:20]))
	cfg.MotionScale = math.Float32frombits(getU32(b[20:24]))
	return
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
