package opticalflow

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
)

// init registers this package's dispatch as a soft.KernelFunc so
// gpuctx.GpuContext can drive it through driver/soft in tests without
// a real GPU. The kernel reads its geometry back from the constant
// buffer rather than closing over a particular OpticalFlow instance,
// since a soft.KernelFunc is registered once globally and dispatched
// against whichever descriptor heap is bound at the time.
func init() {
	soft.RegisterKernel(KernelName, dispatchSoft)
}

func dispatchSoft(heaps []*soft.DescHeap, heapCopy []int, groupCountX, groupCountY, groupCountZ int) error {
	cbuf, _, cbufSize := soft.LookupBuffer(heaps, heapCopy, driver.DConstant, regConstants)
	if cbuf == nil || cbufSize < 24 {
		return errors.New("opticalflow: constant buffer not bound")
	}
	cfg, mvW, mvH := readConstants(cbuf.Bytes())

	cur := soft.LookupImage(heaps, heapCopy, driver.DTexture, regCurrent)
	prev := soft.LookupImage(heaps, heapCopy, driver.DTexture, regPrevious)
	motion := soft.LookupImage(heaps, heapCopy, driver.DImage, regMotion)
	if cur == nil || prev == nil || motion == nil {
		return errors.New("opticalflow: input or output image not bound")
	}
	if mvW != groupCountX || mvH != groupCountY || groupCountZ != 1 {
		return errors.New("opticalflow: dispatch size does not match motion field geometry")
	}

	stats := ComputeMotionField(cur.Pixels(), prev.Pixels(), cur.Stride(), prev.Stride(), cfg, motion.Pixels(), motion.Stride())

	if sadBuf, _, sadSize := soft.LookupBuffer(heaps, heapCopy, driver.DBuffer, regSADSum); sadBuf != nil && sadSize >= sadBufSize {
		b := sadBuf.Bytes()
		binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(stats.TotalSAD))
		binary.LittleEndian.PutUint32(b[8:12], uint32(stats.BlockCount))
	}
	return nil
}

func readConstants(b []byte) (cfg Config, mvW, mvH int) {
	cfg.Width = int(getU32(b[0:4]))
	cfg.Height = int(getU32(b[4:8]))
	mvW = int(getU32(b[8:12]))
	mvH = int(getU32(b[12:16]))
	cfg.BlockSize = int(getU32(b[16:20]))
	cfg.SearchRadius = int(getU32(b[20:24]))
	return
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
