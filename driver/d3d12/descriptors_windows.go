//go:build windows

package d3d12

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

type d3d12DescriptorHeapDesc struct {
	Type           int32
	NumDescriptors uint32
	Flags          int32
	NodeMask       uint32
}

type d3d12CPUDescHandle struct{ Ptr uintptr }
type d3d12GPUDescHandle struct{ Ptr uint64 }

const (
	d3d12HeapGetCPUStart = 8
	d3d12HeapGetGPUStart = 9

	descRangeTypeSRV = 0
	descRangeTypeUAV = 1
	descRangeTypeCBV = 2

	rangeOffsetAppend = 0xFFFFFFFF
)

// DescHeap is the D3D12 driver.DescHeap implementation: one
// shader-visible CBV_SRV_UAV descriptor heap sized for Count() copies
// of the descriptor layout it was created with, laid out copy-major
// (all of copy 0's descriptors, then all of copy 1's, ...) so a given
// copy's descriptors are contiguous and bindable as one table.
type DescHeap struct {
	gpu   *GPU
	descs []driver.Descriptor

	heap      uintptr
	cpuStart  uintptr
	gpuStart  uint64
	incr      uint32
	count     int
}

func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &DescHeap{gpu: g, descs: append([]driver.Descriptor(nil), ds...), incr: g.cbvSrvUavIncr}, nil
}

func (h *DescHeap) Destroy() {
	comRelease(h.heap)
	h.heap = 0
}

// New (re)allocates the underlying descriptor heap for n copies. Like
// the contract requires, a previous heap (and every descriptor handed
// out from it) is invalidated unless n already equals Count().
func (h *DescHeap) New(n int) error {
	if n == h.count {
		return nil
	}
	comRelease(h.heap)
	h.heap = 0
	h.count = 0
	if n == 0 {
		return nil
	}
	desc := d3d12DescriptorHeapDesc{
		Type:           descHeapTypeCBVSRVUAV,
		NumDescriptors: uint32(n * len(h.descs)),
		Flags:          descHeapFlagShaderVisible,
	}
	var heap uintptr
	if _, err := comCall(h.gpu.device, d3d12DeviceCreateDescriptorHeap, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&iidID3D12DescriptorHeap)), uintptr(unsafe.Pointer(&heap))); err != nil {
		return fmt.Errorf("d3d12: CreateDescriptorHeap: %w", err)
	}
	var cpu d3d12CPUDescHandle
	syscall.SyscallN(comVtblFn(heap, d3d12HeapGetCPUStart), heap, uintptr(unsafe.Pointer(&cpu)))
	var gpuH d3d12GPUDescHandle
	syscall.SyscallN(comVtblFn(heap, d3d12HeapGetGPUStart), heap, uintptr(unsafe.Pointer(&gpuH)))

	h.heap = heap
	h.cpuStart = cpu.Ptr
	h.gpuStart = gpuH.Ptr
	h.count = n
	return nil
}

func (h *DescHeap) slotCPU(cpy, idx int) uintptr {
	return h.cpuStart + uintptr((cpy*len(h.descs)+idx)*int(h.incr))
}

func (h *DescHeap) slotGPU(cpy int) uint64 {
	return h.gpuStart + uint64(cpy*len(h.descs))*uint64(h.incr)
}

// indexOf finds the descriptor bound at register nr of type typ,
// disambiguating HLSL's independent t/u/b register spaces the same
// way driver/soft's DescHeap does.
func (h *DescHeap) indexOf(typ driver.DescType, nr int) int {
	for i, d := range h.descs {
		if d.Type == typ && d.Nr == nr {
			return i
		}
	}
	return -1
}

type d3d12ConstBufViewDesc struct {
	BufferLocation uint64
	SizeInBytes    uint32
}

type d3d12ShaderResViewDesc struct {
	Format                  uint32
	ViewDimension           uint32
	Shader4ComponentMapping uint32
	// Texture2D union member, large enough for the common fields.
	MostDetailedMip     uint32
	MipLevels           uint32
	PlaneSlice          uint32
	ResourceMinLODClamp float32
}

type d3d12UnorderedAccessViewDesc struct {
	Format        uint32
	ViewDimension uint32
	MipSlice      uint32
	PlaneSlice    uint32
}

const defaultShader4ComponentMapping = 0x1688 // D3D12_DEFAULT_SHADER_4_COMPONENT_MAPPING

func (h *DescHeap) SetBuffer(cpy, nr int, buf driver.Buffer, off, size int64) {
	idx := h.indexOf(driver.DBuffer, nr)
	db, ok := buf.(*Buffer)
	if !ok {
		return
	}
	if idx >= 0 {
		uav := d3d12UnorderedAccessViewDesc{ViewDimension: 1} // D3D12_UAV_DIMENSION_BUFFER
		syscall.SyscallN(comVtblFn(h.gpu.device, d3d12DeviceCreateUnorderedAccessView), h.gpu.device, db.res, 0, uintptr(unsafe.Pointer(&uav)), h.slotCPU(cpy, idx))
		return
	}
	idx = h.indexOf(driver.DConstant, nr)
	if idx < 0 {
		return
	}
	cbv := d3d12ConstBufViewDesc{BufferLocation: db.gpuAddress() + uint64(off), SizeInBytes: uint32((size + 255) &^ 255)}
	syscall.SyscallN(comVtblFn(h.gpu.device, d3d12DeviceCreateConstantBufferView), h.gpu.device, uintptr(unsafe.Pointer(&cbv)), h.slotCPU(cpy, idx))
}

func (h *DescHeap) SetImage(cpy, nr int, img driver.Image) {
	di, ok := img.(*Image)
	if !ok {
		return
	}
	if idx := h.indexOf(driver.DImage, nr); idx >= 0 {
		uav := d3d12UnorderedAccessViewDesc{Format: pixelFmtToDXGI(di.format), ViewDimension: 4} // D3D12_UAV_DIMENSION_TEXTURE2D
		syscall.SyscallN(comVtblFn(h.gpu.device, d3d12DeviceCreateUnorderedAccessView), h.gpu.device, di.res, 0, uintptr(unsafe.Pointer(&uav)), h.slotCPU(cpy, idx))
		return
	}
	if idx := h.indexOf(driver.DTexture, nr); idx >= 0 {
		srv := d3d12ShaderResViewDesc{Format: pixelFmtToDXGI(di.format), ViewDimension: 4, Shader4ComponentMapping: defaultShader4ComponentMapping, MipLevels: 1, ResourceMinLODClamp: 0} // D3D12_SRV_DIMENSION_TEXTURE2D
		syscall.SyscallN(comVtblFn(h.gpu.device, d3d12DeviceCreateShaderResourceView), h.gpu.device, di.res, uintptr(unsafe.Pointer(&srv)), h.slotCPU(cpy, idx))
		return
	}
}

func (h *DescHeap) Count() int { return h.count }

// DescTable is the D3D12 driver.DescTable implementation: the ordered
// heaps it was built from, one root-signature descriptor table per
// heap. Pipeline builds the actual root signature from this layout
// when it is bound to a CompState.
type DescTable struct {
	heaps []*DescHeap
}

func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	t := &DescTable{}
	for _, h := range dh {
		dh, ok := h.(*DescHeap)
		if !ok {
			return nil, errors.New("d3d12: foreign descriptor heap")
		}
		t.heaps = append(t.heaps, dh)
	}
	return t, nil
}

func (t *DescTable) Destroy() {}
