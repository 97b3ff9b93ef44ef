package soft

import "github.com/osfg-go/framegen/driver"

// Buffer is the in-memory driver.Buffer implementation. Capacity is
// exact (no backend alignment padding). Nothing in-process needs an
// actual host/device memory distinction, but Visible/Bytes still
// honor the contract: Bytes returns the live backing array for a
// host-visible buffer and nil otherwise, so callers exercising the
// "not visible" path get realistic behavior in tests.
type Buffer struct {
	id      uint64
	data    []byte
	visible bool
	usage   driver.Usage
}

func (b *Buffer) Destroy()      {}
func (b *Buffer) Visible() bool { return b.visible }

func (b *Buffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

func (b *Buffer) Cap() int64 { return int64(len(b.data)) }

// Image is the in-memory driver.Image implementation: a tightly
// packed row-major pixel buffer with no backend-specific row-pitch
// alignment (unlike the d3d12 backend's 256-byte alignment, nothing
// here benefits from it).
type Image struct {
	id     uint64
	size   driver.Dim2D
	format driver.PixelFmt
	state  driver.ResourceState
	pixels []byte
	stride int
}

func (im *Image) Destroy()                 {}
func (im *Image) Size() driver.Dim2D        { return im.size }
func (im *Image) Format() driver.PixelFmt   { return im.format }
func (im *Image) State() driver.ResourceState { return im.state }

// Pixels returns the image's raw row-major pixel bytes. Algorithm
// kernels (block matching, bilinear warp) read and write through this
// directly instead of going through a shader ISA, since this backend
// has no GPU to execute shaders on.
func (im *Image) Pixels() []byte { return im.pixels }

// Stride returns the byte distance between two consecutive rows.
func (im *Image) Stride() int { return im.stride }

func bytesPerPixel(pf driver.PixelFmt) int {
	switch pf {
	case driver.BGRA8un, driver.RGBA8un, driver.RG16i:
		return 4
	default:
		return 4
	}
}

// descSlot is one bound resource within a DescHeap copy.
type descSlot struct {
	typ     driver.DescType
	buf     *Buffer
	bufOff  int64
	bufSize int64
	img     *Image
}

// DescHeap is the in-memory driver.DescHeap implementation: a fixed
// set of descriptor slots (mirroring the real backend's register
// numbers t0/u0/b0/...), replicated across Count() copies so that
// double/triple buffered callers can bind a distinct resource set per
// copy without serializing on the GPU.
type DescHeap struct {
	descs []driver.Descriptor
	slots [][]descSlot // [copy][descriptor index]
}

func (h *DescHeap) Destroy() {}

func (h *DescHeap) New(n int) error {
	if n == len(h.slots) {
		return nil
	}
	h.slots = make([][]descSlot, n)
	for i := range h.slots {
		h.slots[i] = make([]descSlot, len(h.descs))
	}
	return nil
}

// indexOf finds the descriptor bound at register nr of type typ.
// Register numbers are only unique within a descriptor type (t0/u0/b0
// are independent spaces, as in HLSL), so typ disambiguates a texture
// at t1 from a buffer or UAV that happens to share the number 1.
func (h *DescHeap) indexOf(typ driver.DescType, nr int) int {
	for i, d := range h.descs {
		if d.Type == typ && d.Nr == nr {
			return i
		}
	}
	return -1
}

func (h *DescHeap) SetBuffer(cpy, nr int, buf driver.Buffer, off, size int64) {
	idx := h.indexOf(driver.DBuffer, nr)
	if idx < 0 {
		idx = h.indexOf(driver.DConstant, nr)
	}
	if idx < 0 {
		return
	}
	sb, _ := buf.(*Buffer)
	h.slots[cpy][idx] = descSlot{typ: h.descs[idx].Type, buf: sb, bufOff: off, bufSize: size}
}

func (h *DescHeap) SetImage(cpy, nr int, img driver.Image) {
	idx := h.indexOf(driver.DImage, nr)
	if idx < 0 {
		// Fall back to a read-only texture slot (t-register) bound by
		// the same call, as SetImage also binds OpticalFlow's
		// current/previous inputs which are DTexture descriptors.
		idx = h.indexOf(driver.DTexture, nr)
	}
	if idx < 0 {
		return
	}
	si, _ := img.(*Image)
	h.slots[cpy][idx] = descSlot{typ: h.descs[idx].Type, img: si}
}

func (h *DescHeap) Count() int { return len(h.slots) }

// DescTable is the in-memory driver.DescTable implementation: just
// the ordered set of heaps it was built from, looked up by kernels at
// dispatch time via LookupImage/LookupBuffer.
type DescTable struct {
	heaps []*DescHeap
}

func (t *DescTable) Destroy() {}

// Pipeline binds a registered KernelFunc to the descriptor table its
// CompState was created with.
type Pipeline struct {
	kernel KernelFunc
	table  *DescTable
}

func (p *Pipeline) Destroy() {}

// ShaderCode names a registered KernelFunc. Unlike the d3d12 backend,
// where NewShaderCode takes compiled HLSL bytecode, soft.GPU's
// NewShaderCode takes the kernel's registered name as a []byte, since
// there is no bytecode to execute.
type ShaderCode struct {
	name string
}

func (s *ShaderCode) Destroy() {}
