//go:build windows

package d3d12

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

const (
	d3d12ListClose                      = 8
	d3d12ListReset                      = 9
	d3d12ListDispatch                   = 13
	d3d12ListCopyBufferRegion           = 14
	d3d12ListCopyTextureRegion          = 15
	d3d12ListSetPipelineState           = 24
	d3d12ListResourceBarrier            = 25
	d3d12ListSetDescriptorHeaps         = 27
	d3d12ListSetComputeRootSignature    = 28
	d3d12ListSetComputeRootDescTable    = 30

	d3d12AllocatorReset = 7

	resourceBarrierTypeTransition = 0
	barrierFlagNone                = 0
	barrierAllSubresources          = 0xFFFFFFFF
)

type d3d12ResourceBarrier struct {
	Type  int32
	Flags int32
	// Transition member fields (the only barrier type this backend
	// issues, since the pipeline never aliases or needs UAV barriers
	// beyond what a state transition already orders).
	Resource   uintptr
	Subresource uint32
	StateBefore int32
	StateAfter  int32
}

func stateToD3D12(s driver.ResourceState) int32 {
	switch s {
	case driver.StateCommon:
		return resourceStateCommon
	case driver.StateCopySrc:
		return resourceStateCopySource
	case driver.StateCopyDst:
		return resourceStateCopyDest
	case driver.StateUnorderedAccess:
		return resourceStateUAV
	case driver.StateShaderResource:
		return resourceStateNonPixel
	case driver.StatePresent:
		return resourceStatePresent
	default:
		return resourceStateCommon
	}
}

type d3d12Box struct {
	Left, Top, Front, Right, Bottom, Back uint32
}

type d3d12TextureCopyLocation struct {
	Resource uintptr
	Type     int32
	// Footprint/SubresourceIndex union, large enough to hold either a
	// placed-footprint copy (buffer<->texture) or a subresource index
	// (texture<->texture); only the fields each Copy* helper below
	// writes are populated.
	Offset        uint64
	Format        uint32
	Width, Height, Depth uint32
	RowPitch      uint32
	SubresourceIdx uint32
}

const (
	copyLocationSubresourceIndex = 0
	copyLocationPlacedFootprint  = 1
)

// CmdBuffer is the D3D12 driver.CmdBuffer implementation: one command
// allocator and one graphics command list, reused across
// Reset/Begin/End cycles the way gpuctx's ResetRecording/SubmitAndWait
// discipline expects. BeginWork/EndWork/BeginBlit/EndBlit are no-ops
// beyond bookkeeping; D3D12's command list has no separate
// compute/copy block concept within a single list of commandListTypeDirect.
type CmdBuffer struct {
	gpu       *GPU
	allocator uintptr
	list      uintptr

	pipeline *Pipeline
	boundHeap uintptr
}

func newCmdBuffer(g *GPU) (*CmdBuffer, error) {
	var allocator uintptr
	if _, err := comCall(g.device, d3d12DeviceCreateCommandAllocator, uintptr(commandListTypeDirect), uintptr(unsafe.Pointer(&iidID3D12CommandAllocator)), uintptr(unsafe.Pointer(&allocator))); err != nil {
		return nil, fmt.Errorf("d3d12: CreateCommandAllocator: %w", err)
	}
	var list uintptr
	if _, err := comCall(g.device, d3d12DeviceCreateCommandList, 0, uintptr(commandListTypeDirect), allocator, 0, uintptr(unsafe.Pointer(&iidID3D12GraphicsCommandList)), uintptr(unsafe.Pointer(&list))); err != nil {
		comRelease(allocator)
		return nil, fmt.Errorf("d3d12: CreateCommandList: %w", err)
	}
	// CreateCommandList returns an open (recording) list; close it so
	// the Begin/End state machine below starts from a known state.
	syscall.SyscallN(comVtblFn(list, d3d12ListClose), list)
	return &CmdBuffer{gpu: g, allocator: allocator, list: list}, nil
}

func (cb *CmdBuffer) Destroy() {
	comRelease(cb.list)
	comRelease(cb.allocator)
	cb.list, cb.allocator = 0, 0
}

func (cb *CmdBuffer) Begin() error {
	if _, err := comCall(cb.list, d3d12ListReset, cb.allocator, 0); err != nil {
		return fmt.Errorf("d3d12: ID3D12GraphicsCommandList::Reset: %w", err)
	}
	cb.pipeline = nil
	cb.boundHeap = 0
	return nil
}

func (cb *CmdBuffer) BeginWork() {}
func (cb *CmdBuffer) EndWork()   {}
func (cb *CmdBuffer) BeginBlit() {}
func (cb *CmdBuffer) EndBlit()   {}

func (cb *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	p, ok := pl.(*Pipeline)
	if !ok {
		return
	}
	cb.pipeline = p
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListSetPipelineState), cb.list, p.pso)
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListSetComputeRootSignature), cb.list, p.rootSig)
}

// SetDescTable binds, for each heap in table, the real descriptor
// heap (SetDescriptorHeaps only needs to happen once per distinct
// heap, but calling it again with the same pointer is harmless) and
// then the heap-copy-th descriptor table as root parameter i.
func (cb *CmdBuffer) SetDescTable(table driver.DescTable, heapCopy []int) {
	t, ok := table.(*DescTable)
	if !ok || len(t.heaps) == 0 {
		return
	}
	heaps := make([]uintptr, 0, len(t.heaps))
	for _, h := range t.heaps {
		if h.heap != 0 {
			heaps = append(heaps, h.heap)
		}
	}
	if len(heaps) > 0 {
		syscall.SyscallN(comVtblFn(cb.list, d3d12ListSetDescriptorHeaps), cb.list, uintptr(len(heaps)), uintptr(unsafe.Pointer(&heaps[0])))
	}
	for i, h := range t.heaps {
		cpy := 0
		if i < len(heapCopy) {
			cpy = heapCopy[i]
		}
		gpuHandle := h.slotGPU(cpy)
		syscall.SyscallN(comVtblFn(cb.list, d3d12ListSetComputeRootDescTable), cb.list, uintptr(i), uintptr(gpuHandle))
	}
}

func (cb *CmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListDispatch), cb.list, uintptr(grpCountX), uintptr(grpCountY), uintptr(grpCountZ))
}

func (cb *CmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	from, ok1 := param.From.(*Buffer)
	to, ok2 := param.To.(*Buffer)
	if !ok1 || !ok2 {
		return
	}
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListCopyBufferRegion), cb.list,
		to.res, uintptr(param.ToOff), from.res, uintptr(param.FromOff), uintptr(param.Size))
}

func (cb *CmdBuffer) CopyImage(param *driver.ImageCopy) {
	from, ok1 := param.From.(*Image)
	to, ok2 := param.To.(*Image)
	if !ok1 || !ok2 {
		return
	}
	srcLoc := d3d12TextureCopyLocation{Resource: from.res, Type: copyLocationSubresourceIndex}
	dstLoc := d3d12TextureCopyLocation{Resource: to.res, Type: copyLocationSubresourceIndex}
	box := d3d12Box{
		Left: uint32(param.FromOff.X), Top: uint32(param.FromOff.Y), Front: 0,
		Right: uint32(param.FromOff.X + param.Size.Width), Bottom: uint32(param.FromOff.Y + param.Size.Height), Back: 1,
	}
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListCopyTextureRegion), cb.list,
		uintptr(unsafe.Pointer(&dstLoc)), uintptr(param.ToOff.X), uintptr(param.ToOff.Y), 0,
		uintptr(unsafe.Pointer(&srcLoc)), uintptr(unsafe.Pointer(&box)))
}

func (cb *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	buf, ok1 := param.Buf.(*Buffer)
	img, ok2 := param.Img.(*Image)
	if !ok1 || !ok2 {
		return
	}
	srcLoc := d3d12TextureCopyLocation{
		Resource: buf.res, Type: copyLocationPlacedFootprint,
		Offset: uint64(param.BufOff), Format: pixelFmtToDXGI(img.format),
		Width: uint32(param.Size.Width), Height: uint32(param.Size.Height), Depth: 1,
		RowPitch: uint32(param.RowPitch),
	}
	dstLoc := d3d12TextureCopyLocation{Resource: img.res, Type: copyLocationSubresourceIndex}
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListCopyTextureRegion), cb.list,
		uintptr(unsafe.Pointer(&dstLoc)), uintptr(param.ImgOff.X), uintptr(param.ImgOff.Y), 0,
		uintptr(unsafe.Pointer(&srcLoc)), 0)
}

func (cb *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	buf, ok1 := param.Buf.(*Buffer)
	img, ok2 := param.Img.(*Image)
	if !ok1 || !ok2 {
		return
	}
	srcLoc := d3d12TextureCopyLocation{Resource: img.res, Type: copyLocationSubresourceIndex}
	dstLoc := d3d12TextureCopyLocation{
		Resource: buf.res, Type: copyLocationPlacedFootprint,
		Offset: uint64(param.BufOff), Format: pixelFmtToDXGI(img.format),
		Width: uint32(param.Size.Width), Height: uint32(param.Size.Height), Depth: 1,
		RowPitch: uint32(param.RowPitch),
	}
	box := d3d12Box{
		Left: uint32(param.ImgOff.X), Top: uint32(param.ImgOff.Y), Front: 0,
		Right: uint32(param.ImgOff.X + param.Size.Width), Bottom: uint32(param.ImgOff.Y + param.Size.Height), Back: 1,
	}
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListCopyTextureRegion), cb.list,
		uintptr(unsafe.Pointer(&dstLoc)), 0, 0, 0,
		uintptr(unsafe.Pointer(&srcLoc)), uintptr(unsafe.Pointer(&box)))
}

func (cb *CmdBuffer) Transition(t []driver.Transition) {
	if len(t) == 0 {
		return
	}
	barriers := make([]d3d12ResourceBarrier, len(t))
	for i, tr := range t {
		img, ok := tr.Img.(*Image)
		if !ok {
			continue
		}
		barriers[i] = d3d12ResourceBarrier{
			Type:        resourceBarrierTypeTransition,
			Resource:    img.res,
			Subresource: barrierAllSubresources,
			StateBefore: stateToD3D12(tr.Before),
			StateAfter:  stateToD3D12(tr.After),
		}
		img.state = tr.After
	}
	syscall.SyscallN(comVtblFn(cb.list, d3d12ListResourceBarrier), cb.list, uintptr(len(barriers)), uintptr(unsafe.Pointer(&barriers[0])))
}

func (cb *CmdBuffer) End() error {
	if _, err := comCall(cb.list, d3d12ListClose); err != nil {
		return fmt.Errorf("d3d12: ID3D12GraphicsCommandList::Close: %w", err)
	}
	return nil
}

func (cb *CmdBuffer) Reset() error {
	if _, err := comCall(cb.allocator, d3d12AllocatorReset); err != nil {
		return fmt.Errorf("d3d12: ID3D12CommandAllocator::Reset: %w", err)
	}
	return nil
}
