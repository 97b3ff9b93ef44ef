//go:build windows

package d3d12

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

type d3d12HeapProperties struct {
	Type                 int32
	CPUPageProperty      int32
	MemoryPoolPreference int32
	CreationNodeMask     uint32
	VisibleNodeMask      uint32
}

type d3d12ResourceDesc struct {
	Dimension        int32
	Alignment        uint64
	Width            uint64
	Height           uint32
	DepthOrArraySize uint16
	MipLevels        uint16
	Format           uint32
	SampleCount      uint32
	SampleQuality    uint32
	Layout           int32
	Flags            uint32
}

const (
	resourceFlagNone                  = 0
	resourceFlagAllowUnorderedAccess  = 0x8
	resourceFlagDenyShaderResource    = 0x40
	textureLayoutUnknown              = 0
	textureLayoutRowMajor             = 1
)

func pixelFmtToDXGI(pf driver.PixelFmt) uint32 {
	switch pf {
	case driver.BGRA8un:
		return 87 // DXGI_FORMAT_B8G8R8A8_UNORM
	case driver.RGBA8un:
		return 28 // DXGI_FORMAT_R8G8B8A8_UNORM
	case driver.RG16i:
		return 38 // DXGI_FORMAT_R16G16_SINT
	default:
		return 87
	}
}

// createCommittedResource places one resource in
// its own heap (no suballocation), matching driver.Buffer/Image's
// "one resource, one allocation" contract; real engines would
// suballocate, but this pipeline's resource count per tick is fixed
// and small (spec.md §4's per-stage image/buffer set), so committed
// resources keep the backend simple without a measurable cost.
func (g *GPU) createCommittedResource(desc *d3d12ResourceDesc, visible bool, initialState int32) (uintptr, error) {
	heapType := int32(heapTypeDefault)
	if visible {
		heapType = heapTypeUpload
	}
	props := d3d12HeapProperties{Type: heapType}
	var res uintptr
	_, err := comCall(g.device, d3d12DeviceCreateCommittedResource,
		uintptr(unsafe.Pointer(&props)),
		uintptr(heapFlagNone),
		uintptr(unsafe.Pointer(desc)),
		uintptr(initialState),
		0,
		uintptr(unsafe.Pointer(&iidID3D12Resource)),
		uintptr(unsafe.Pointer(&res)),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: ID3D12Device::CreateCommittedResource: %v", driver.ErrNoDeviceMemory, err)
	}
	return res, nil
}

// Buffer is the D3D12 driver.Buffer implementation: a committed
// resource in an upload heap (if Visible) or a default heap.
// Upload-heap buffers are persistently mapped for the lifetime of the
// resource, since nothing in this pipeline ever unmaps a constant or
// staging buffer mid-use.
type Buffer struct {
	res     uintptr
	cap     int64
	visible bool
	usage   driver.Usage
	mapped  []byte
}

func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	desc := d3d12ResourceDesc{
		Dimension: resourceDimBuffer,
		Alignment: 0,
		Width:     uint64(size),
		Height:    1, DepthOrArraySize: 1, MipLevels: 1,
		SampleCount: 1,
		Layout:      textureLayoutRowMajor,
		Flags:       resourceFlagNone,
	}
	if usg&driver.UShaderWrite != 0 {
		desc.Flags |= resourceFlagAllowUnorderedAccess
	}
	initial := int32(resourceStateCommon)
	if visible {
		initial = resourceStateGenericRead
	}
	res, err := g.createCommittedResource(&desc, visible, initial)
	if err != nil {
		return nil, err
	}
	b := &Buffer{res: res, cap: size, visible: visible, usage: usg}
	if visible {
		var ptr uintptr
		if _, err := comCall(res, d3d12ResourceMap, 0, 0, uintptr(unsafe.Pointer(&ptr))); err != nil {
			comRelease(res)
			return nil, fmt.Errorf("d3d12: ID3D12Resource::Map: %w", err)
		}
		b.mapped = unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
	}
	return b, nil
}

const (
	d3d12ResourceMap   = 7
	d3d12ResourceUnmap = 8
	d3d12ResourceGPUVA = 10

	resourceStateGenericRead = 0x1 | 0x40 | 0x80 | 0x200 | 0x800
)

func (b *Buffer) Destroy() {
	if b.res == 0 {
		return
	}
	if b.mapped != nil {
		syscall.SyscallN(comVtblFn(b.res, d3d12ResourceUnmap), b.res, 0, 0)
	}
	comRelease(b.res)
	b.res = 0
}

func (b *Buffer) Visible() bool  { return b.visible }
func (b *Buffer) Bytes() []byte  { return b.mapped }
func (b *Buffer) Cap() int64     { return b.cap }

func (b *Buffer) gpuAddress() uint64 {
	addr, _, _ := syscall.SyscallN(comVtblFn(b.res, d3d12ResourceGPUVA), b.res)
	return uint64(addr)
}

// Image is the D3D12 driver.Image implementation: a committed 2D
// texture resource, tracked with the ResourceState the pipeline last
// transitioned it to so CmdBuffer.Transition can compute correct
// before/after barrier pairs without querying the driver.
type Image struct {
	res    uintptr
	size   driver.Dim2D
	format driver.PixelFmt
	usage  driver.Usage
	state  driver.ResourceState
}

func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim2D, usg driver.Usage) (driver.Image, error) {
	desc := d3d12ResourceDesc{
		Dimension:        resourceDimTex2D,
		Width:            uint64(size.Width),
		Height:           uint32(size.Height),
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           pixelFmtToDXGI(pf),
		SampleCount:      1,
		Layout:           textureLayoutUnknown,
	}
	if usg&driver.UShaderWrite != 0 {
		desc.Flags |= resourceFlagAllowUnorderedAccess
	}
	res, err := g.createCommittedResource(&desc, false, resourceStateCommon)
	if err != nil {
		return nil, err
	}
	return &Image{res: res, size: size, format: pf, usage: usg, state: driver.StateCommon}, nil
}

func (im *Image) Destroy() {
	comRelease(im.res)
	im.res = 0
}

func (im *Image) Size() driver.Dim2D       { return im.size }
func (im *Image) Format() driver.PixelFmt  { return im.format }
