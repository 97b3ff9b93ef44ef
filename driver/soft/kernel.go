package soft

import (
	"sync"

	"github.com/osfg-go/framegen/driver"
)

// KernelFunc is the in-memory stand-in for a compiled compute shader.
// It receives the descriptor heaps bound at dispatch time (via
// SetDescTable), the selected copy index per heap (heapCopy, parallel
// to heaps), and the dispatched thread-group counts. Implementations
// read/write bound resources' Pixels()/Bytes() directly — there is no
// thread-group/shared-memory simulation, since the algorithms this
// backend runs (opticalflow, interpolation) are expressed as ordinary
// Go loops over pixel buffers rather than as per-thread shader code.
type KernelFunc func(heaps []*DescHeap, heapCopy []int, groupCountX, groupCountY, groupCountZ int) error

var (
	kernelMu sync.Mutex
	kernels  = map[string]KernelFunc{}
)

// RegisterKernel associates name (the value passed as NewShaderCode's
// data argument) with fn. Packages that implement a GPU stage with
// this backend call it from an init function, mirroring the way
// driver.Register lets backends self-register.
func RegisterKernel(name string, fn KernelFunc) {
	kernelMu.Lock()
	defer kernelMu.Unlock()
	kernels[name] = fn
}

// LookupImage returns the *Image bound to register nr of type typ
// (driver.DTexture for a t-register, driver.DImage for a u-register)
// across heaps, honoring each heap's selected copy in heapCopy (index
// i of heapCopy selects the copy for heaps[i]; missing entries default
// to copy 0).
func LookupImage(heaps []*DescHeap, heapCopy []int, typ driver.DescType, nr int) *Image {
	for i, h := range heaps {
		idx := h.indexOf(typ, nr)
		if idx < 0 {
			continue
		}
		cpy := 0
		if i < len(heapCopy) {
			cpy = heapCopy[i]
		}
		if cpy >= 0 && cpy < len(h.slots) {
			return h.slots[cpy][idx].img
		}
	}
	return nil
}

// LookupBuffer returns the *Buffer bound to register nr (a b- or
// u-register, per typ), along with its bound byte range, across heaps
// (see LookupImage).
func LookupBuffer(heaps []*DescHeap, heapCopy []int, typ driver.DescType, nr int) (buf *Buffer, off, size int64) {
	for i, h := range heaps {
		idx := h.indexOf(typ, nr)
		if idx < 0 {
			continue
		}
		cpy := 0
		if i < len(heapCopy) {
			cpy = heapCopy[i]
		}
		if cpy >= 0 && cpy < len(h.slots) {
			s := h.slots[cpy][idx]
			return s.buf, s.bufOff, s.bufSize
		}
	}
	return nil, 0, 0
}
