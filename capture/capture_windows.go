//go:build windows

package capture

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"
)

func init() {
	newCapturer = newCapturerDXGI
}

var (
	d3d11DLL = syscall.NewLazyDLL("d3d11.dll")

	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	d3d11CreateDeviceBGRASupport = 0x20

	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000

	dxgiFormatB8G8R8A8 = 87

	hrWaitTimeout   = 0x887A0027
	hrAccessLost    = 0x887A0026
	hrInvalidCall   = 0x887A0001
	hrDeviceRemoved = 0x887A0005
	hrDeviceReset   = 0x887A0007

	// COM vtable indices. IUnknown occupies 0-2 on every interface;
	// the offsets below are each interface's own methods, counted
	// from their documented position in the vtable.
	vtblQueryInterface         = 0
	dxgiDeviceGetAdapter       = 7  // IDXGIDevice
	dxgiAdapterEnumOutputs     = 7  // IDXGIAdapter
	dxgiOutput1DuplicateOutput = 22 // IDXGIOutput1
	dxgiDuplGetDesc            = 7  // IDXGIOutputDuplication
	dxgiDuplAcquireNextFrame   = 8  // IDXGIOutputDuplication
	dxgiDuplReleaseFrame       = 14 // IDXGIOutputDuplication
	dxgiResourceQueryInterface = 0  // IDXGIResource is-a IUnknown
	d3d11DeviceCreateTexture2D = 5  // ID3D11Device
	d3d11CtxCopyResource       = 47 // ID3D11DeviceContext
	d3d11CtxMap                = 14 // ID3D11DeviceContext
	d3d11CtxUnmap              = 15 // ID3D11DeviceContext
)

var (
	iidIDXGIDevice     = comGUID{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIOutput1    = comGUID{0x00cddea8, 0x939b, 0x4b83, [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidID3D11Texture2D = comGUID{0x6f15aaf2, 0xd208, 0x4e89, [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC.
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

type dxgiRational struct {
	Numerator   uint32
	Denominator uint32
}

type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRate      dxgiRational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

type dxgiOutDuplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32
}

// dxgiOutDuplFrameInfo matches DXGI_OUTDUPL_FRAME_INFO. Only the fields
// this package reads are named precisely; the rest keep the real layout
// so later fields stay correctly aligned.
type dxgiOutDuplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPositionX          int32
	PointerPositionY          int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

// dxgiCapturer implements Capturer with DXGI Desktop Duplication, in pure
// Go (no cgo), following the same raw COM-vtable syscall idiom as the
// rest of this module's Windows-specific files.
type dxgiCapturer struct {
	mu sync.Mutex

	device      uintptr // ID3D11Device
	context     uintptr // ID3D11DeviceContext
	duplication uintptr // IDXGIOutputDuplication
	staging     uintptr // ID3D11Texture2D, CPU-readable readback target

	width, height int
	rotation      uint32

	acquired    bool // true between a successful Acquire and its Release
	acquiredTex uintptr

	stats Stats
}

func newCapturerDXGI(cfg Config) (Capturer, error) {
	c := &dxgiCapturer{}
	if err := c.init(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *dxgiCapturer) init(cfg Config) error {
	var device, context uintptr
	featureLevel := uint32(d3dFeatureLevel11_0)
	var actualLevel uint32

	hr, _, _ := procD3D11CreateDevice.Call(
		0,
		uintptr(d3dDriverTypeHardware),
		0,
		uintptr(d3d11CreateDeviceBGRASupport),
		uintptr(unsafe.Pointer(&featureLevel)),
		1,
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&device)),
		uintptr(unsafe.Pointer(&actualLevel)),
		uintptr(unsafe.Pointer(&context)),
	)
	if int32(hr) < 0 {
		return fmt.Errorf("capture: D3D11CreateDevice failed: 0x%08X", uint32(hr))
	}

	var dxgiDevice uintptr
	if _, err := comCall(device, vtblQueryInterface, uintptr(unsafe.Pointer(&iidIDXGIDevice)), uintptr(unsafe.Pointer(&dxgiDevice))); err != nil {
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: QueryInterface IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: IDXGIDevice::GetAdapter: %w", err)
	}
	defer comRelease(adapter)

	var output uintptr
	if _, err := comCall(adapter, dxgiAdapterEnumOutputs, uintptr(cfg.DisplayIndex), uintptr(unsafe.Pointer(&output))); err != nil {
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: IDXGIAdapter::EnumOutputs(%d): %w", cfg.DisplayIndex, err)
	}

	var output1 uintptr
	_, err := comCall(output, vtblQueryInterface, uintptr(unsafe.Pointer(&iidIDXGIOutput1)), uintptr(unsafe.Pointer(&output1)))
	comRelease(output)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: QueryInterface IDXGIOutput1: %w", err)
	}
	defer comRelease(output1)

	var duplication uintptr
	if _, err := comCall(output1, dxgiOutput1DuplicateOutput, device, uintptr(unsafe.Pointer(&duplication))); err != nil {
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: IDXGIOutput1::DuplicateOutput: %w", err)
	}

	var desc dxgiOutDuplDesc
	if _, err := comCall(duplication, dxgiDuplGetDesc, uintptr(unsafe.Pointer(&desc))); err != nil {
		comRelease(duplication)
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: IDXGIOutputDuplication::GetDesc: %w", err)
	}
	width, height := int(desc.ModeDesc.Width), int(desc.ModeDesc.Height)
	if width <= 0 || height <= 0 {
		comRelease(duplication)
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: invalid duplication dimensions %dx%d", width, height)
	}

	stagingDesc := d3d11Texture2DDesc{
		Width:          uint32(width),
		Height:         uint32(height),
		MipLevels:      1,
		ArraySize:      1,
		Format:         dxgiFormatB8G8R8A8,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	var staging uintptr
	if _, err := comCall(device, d3d11DeviceCreateTexture2D, uintptr(unsafe.Pointer(&stagingDesc)), 0, uintptr(unsafe.Pointer(&staging))); err != nil {
		comRelease(duplication)
		comRelease(context)
		comRelease(device)
		return fmt.Errorf("capture: CreateTexture2D (staging): %w", err)
	}

	c.device = device
	c.context = context
	c.duplication = duplication
	c.staging = staging
	c.width = width
	c.height = height
	c.rotation = desc.Rotation
	return nil
}

// Acquire waits up to timeoutMs for a new frame via
// IDXGIOutputDuplication::AcquireNextFrame, maps the HRESULT onto the
// Capturer contract, and on success copies the acquired texture into the
// persistent staging texture for CPU/cross-device readback.
func (c *dxgiCapturer) Acquire(timeoutMs int) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acquired {
		return Frame{}, fmt.Errorf("capture: Acquire called without a matching Release")
	}

	start := time.Now()

	var frameInfo dxgiOutDuplFrameInfo
	var resource uintptr
	hr, _, _ := callAcquireNextFrame(c.duplication, uint32(timeoutMs), &frameInfo, &resource)
	switch int32(hr) {
	case 0:
		// S_OK, fall through
	case int32(hrWaitTimeout):
		c.stats.recordMiss()
		return Frame{}, ErrTimedOut
	case int32(hrAccessLost), int32(hrInvalidCall):
		return Frame{}, ErrAccessLost
	case int32(hrDeviceRemoved), int32(hrDeviceReset):
		return Frame{}, &FailedError{Kind: FailedDeviceRemoved, Err: fmt.Errorf("HRESULT 0x%08X", uint32(hr))}
	default:
		if int32(hr) < 0 {
			c.stats.recordMiss()
			return Frame{}, &FailedError{Kind: FailedUnknown, Err: fmt.Errorf("AcquireNextFrame HRESULT 0x%08X", uint32(hr))}
		}
	}
	if resource == 0 {
		// AccumulatedFrames == 0: duplication woke us with nothing new
		// (e.g. pointer-only update). Release immediately and report
		// it like a timeout so the caller retries.
		syscall0(c.duplication, dxgiDuplReleaseFrame)
		c.stats.recordMiss()
		return Frame{}, ErrTimedOut
	}
	defer comRelease(resource)

	var tex uintptr
	if _, err := comCall(resource, dxgiResourceQueryInterface, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&tex))); err != nil {
		syscall0(c.duplication, dxgiDuplReleaseFrame)
		return Frame{}, &FailedError{Kind: FailedUnknown, Err: fmt.Errorf("QueryInterface ID3D11Texture2D: %w", err)}
	}

	if _, err := comCall(c.context, d3d11CtxCopyResource, c.staging, tex); err != nil {
		comRelease(tex)
		syscall0(c.duplication, dxgiDuplReleaseFrame)
		return Frame{}, &FailedError{Kind: FailedMapFailed, Err: err}
	}
	comRelease(tex)

	c.acquired = true
	c.acquiredTex = c.staging
	c.stats.recordCapture(time.Since(start))

	return Frame{
		Texture:        c.staging,
		Width:          c.width,
		Height:         c.height,
		PointerX:       int(frameInfo.PointerPositionX),
		PointerY:       int(frameInfo.PointerPositionY),
		PointerVisible: frameInfo.PointerVisible != 0,
		Rotation:       c.rotation,
	}, nil
}

// Release calls IDXGIOutputDuplication::ReleaseFrame, allowing the
// duplication API to reuse the desktop image resource it handed to the
// last successful Acquire.
func (c *dxgiCapturer) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return
	}
	syscall0(c.duplication, dxgiDuplReleaseFrame)
	c.acquired = false
	c.acquiredTex = 0
}

func (c *dxgiCapturer) Width() int       { return c.width }
func (c *dxgiCapturer) Height() int      { return c.height }
func (c *dxgiCapturer) Rotation() uint32 { return c.rotation }

func (c *dxgiCapturer) DeviceHandle() uintptr  { return c.device }
func (c *dxgiCapturer) ContextHandle() uintptr { return c.context }

func (c *dxgiCapturer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *dxgiCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquired {
		syscall0(c.duplication, dxgiDuplReleaseFrame)
		c.acquired = false
	}
	comRelease(c.staging)
	comRelease(c.duplication)
	comRelease(c.context)
	comRelease(c.device)
	c.staging, c.duplication, c.context, c.device = 0, 0, 0, 0
	return nil
}

// callAcquireNextFrame wraps IDXGIOutputDuplication::AcquireNextFrame,
// whose out-parameters (frame info, then resource) don't fit comCall's
// single-return-value shape.
func callAcquireNextFrame(duplication uintptr, timeoutMs uint32, info *dxgiOutDuplFrameInfo, resource *uintptr) (uintptr, uintptr, error) {
	hr, r2, _ := syscall.SyscallN(comVtblFn(duplication, dxgiDuplAcquireNextFrame),
		duplication, uintptr(timeoutMs), uintptr(unsafe.Pointer(info)), uintptr(unsafe.Pointer(resource)))
	return hr, r2, nil
}

func syscall0(obj uintptr, vtblIdx int) {
	syscall.SyscallN(comVtblFn(obj, vtblIdx), obj)
}
