//go:build windows

// Package d3d12 implements driver.Driver on top of raw Direct3D 12 and
// DXGI COM calls, in pure Go: every interface method is reached
// through syscall.NewLazyDLL/NewProc and a hand-rolled vtable call,
// following the same convention the rest of this module's
// Windows-specific packages use for Win32 and D3D11 (wsi, capture,
// hotkey). It is the compute/presentation backend cmd/framegen opens
// against the adapter named by [GPU] Primary/Secondary; driver/soft
// exists purely so the rest of the pipeline can be tested without a
// GPU or a Windows host.
package d3d12

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

// Name is the driver name d3d12.Driver registers under, the value
// cmd/framegen looks up in driver.Drivers() at startup.
const Name = "d3d12"

func init() {
	driver.Register(&Driver{})
}

var (
	d3d12DLL = syscall.NewLazyDLL("d3d12.dll")
	dxgiDLL  = syscall.NewLazyDLL("dxgi.dll")

	procD3D12CreateDevice         = d3d12DLL.NewProc("D3D12CreateDevice")
	procD3D12SerializeRootSig     = d3d12DLL.NewProc("D3D12SerializeRootSignature")
	procCreateDXGIFactory2        = dxgiDLL.NewProc("CreateDXGIFactory2")
)

const (
	d3dFeatureLevel11_0 = 0xb000

	dxgiFactoryCreateFlag = 0

	// COM vtable indices, counted from each interface's documented
	// position (IUnknown occupies 0-2 on every interface; ID3D12Object
	// adds GetPrivateData/SetPrivateData/SetPrivateDataInterface/
	// SetName at 3-6 on every D3D12 object type below).
	dxgiFactoryEnumAdapters1    = 7  // IDXGIFactory1
	dxgiFactory4CreateSwapChain = 15 // IDXGIFactory2, via the IDXGIFactory4 chain
	dxgiAdapterGetDesc1         = 10 // IDXGIAdapter1

	d3d12DeviceCreateCommandQueue        = 8
	d3d12DeviceCreateCommandAllocator    = 9
	d3d12DeviceCreateComputePipelineState = 11
	d3d12DeviceCreateCommandList         = 12
	d3d12DeviceCreateDescriptorHeap      = 14
	d3d12DeviceGetDescHandleIncrementSz  = 15
	d3d12DeviceCreateRootSignature       = 16
	d3d12DeviceCreateConstantBufferView  = 17
	d3d12DeviceCreateShaderResourceView  = 18
	d3d12DeviceCreateUnorderedAccessView = 19
	d3d12DeviceCreateCommittedResource   = 27
	d3d12DeviceCreateFence               = 36
	d3d12DeviceGetDeviceRemovedReason    = 37

	d3d12QueueExecuteCommandLists = 9
	d3d12QueueSignal              = 13

	d3d12FenceGetCompletedValue  = 7
	d3d12FenceSetEventOnComplete = 8

	commandListTypeDirect = 0

	heapTypeDefault  = 1
	heapTypeUpload   = 2
	heapTypeReadback = 3

	heapFlagNone = 0

	resourceDimBuffer  = 1
	resourceDimTex2D   = 3

	resourceStateCommon       = 0
	resourceStateCopyDest     = 0x400
	resourceStateCopySource   = 0x800
	resourceStateUAV          = 0x8
	resourceStatePixelShader  = 0x40
	resourceStateNonPixel     = 0x80
	resourceStatePresent      = 0

	descHeapTypeCBVSRVUAV = 0
	descHeapFlagShaderVisible = 2

	eventAllAccess = 0x1F0003
)

// Driver implements driver.Driver for real D3D12 hardware. Open opens
// exactly one GPU, cached on the receiver, matching the contract that
// a second Open call returns the same instance.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Open(adapter int) (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		return d.gpu, nil
	}
	g, err := openDevice(d, adapter)
	if err != nil {
		return nil, err
	}
	d.gpu = g
	return g, nil
}

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		d.gpu.release()
		d.gpu = nil
	}
}

// createEvent wraps kernel32!CreateEventW for the fence wait path.
var (
	kernel32DLL        = syscall.NewLazyDLL("kernel32.dll")
	procCreateEventW   = kernel32DLL.NewProc("CreateEventW")
	procWaitForSingleObj = kernel32DLL.NewProc("WaitForSingleObject")
	procCloseHandle    = kernel32DLL.NewProc("CloseHandle")
)

func createAutoResetEvent() (syscall.Handle, error) {
	h, _, _ := procCreateEventW.Call(0, 0, 0, 0)
	if h == 0 {
		return 0, fmt.Errorf("d3d12: CreateEventW failed")
	}
	return syscall.Handle(h), nil
}

// openDevice enumerates DXGI adapters via IDXGIFactory2, picks the
// one at index adapter, creates a D3D12 device against it, and wraps
// a direct command queue plus a shared fence around it.
func openDevice(drv *Driver, adapter int) (*GPU, error) {
	var factory uintptr
	if hr, _, _ := procCreateDXGIFactory2.Call(uintptr(dxgiFactoryCreateFlag), uintptr(unsafe.Pointer(&iidIDXGIFactory4)), uintptr(unsafe.Pointer(&factory))); int32(hr) < 0 {
		return nil, fmt.Errorf("%w: CreateDXGIFactory2: HRESULT 0x%08X", driver.ErrNotInstalled, uint32(hr))
	}
	defer comRelease(factory)

	var dxgiAdapter uintptr
	if _, err := comCall(factory, dxgiFactoryEnumAdapters1, uintptr(adapter), uintptr(unsafe.Pointer(&dxgiAdapter))); err != nil {
		return nil, fmt.Errorf("%w: IDXGIFactory1::EnumAdapters1(%d): %v", driver.ErrNoDevice, adapter, err)
	}
	defer comRelease(dxgiAdapter)

	var device uintptr
	if hr, _, _ := procD3D12CreateDevice.Call(dxgiAdapter, uintptr(d3dFeatureLevel11_0), uintptr(unsafe.Pointer(&iidID3D12Device)), uintptr(unsafe.Pointer(&device))); int32(hr) < 0 {
		return nil, fmt.Errorf("%w: D3D12CreateDevice: HRESULT 0x%08X", driver.ErrNoDevice, uint32(hr))
	}

	qDesc := d3d12CommandQueueDesc{Type: commandListTypeDirect}
	var queue uintptr
	if _, err := comCall(device, d3d12DeviceCreateCommandQueue, uintptr(unsafe.Pointer(&qDesc)), uintptr(unsafe.Pointer(&iidID3D12CommandQueue)), uintptr(unsafe.Pointer(&queue))); err != nil {
		comRelease(device)
		return nil, fmt.Errorf("d3d12: CreateCommandQueue: %w", err)
	}

	var fence uintptr
	if _, err := comCall(device, d3d12DeviceCreateFence, 0, 0, uintptr(unsafe.Pointer(&iidID3D12Fence)), uintptr(unsafe.Pointer(&fence))); err != nil {
		comRelease(queue)
		comRelease(device)
		return nil, fmt.Errorf("d3d12: CreateFence: %w", err)
	}

	event, err := createAutoResetEvent()
	if err != nil {
		comRelease(fence)
		comRelease(queue)
		comRelease(device)
		return nil, err
	}

	incr, _, _ := syscall.SyscallN(comVtblFn(device, d3d12DeviceGetDescHandleIncrementSz), device, uintptr(descHeapTypeCBVSRVUAV))

	g := &GPU{
		drv:           drv,
		device:        device,
		queue:         queue,
		fence:         fence,
		fenceEvent:    event,
		cbvSrvUavIncr: uint32(incr),
	}
	return g, nil
}

func (g *GPU) release() {
	if g.fenceEvent != 0 {
		procCloseHandle.Call(uintptr(g.fenceEvent))
	}
	comRelease(g.fence)
	comRelease(g.queue)
	comRelease(g.device)
}

type d3d12CommandQueueDesc struct {
	Type     int32
	Priority int32
	Flags    int32
	NodeMask uint32
}
