//go:build windows

package d3d12

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/wsi"
)

type dxgiSwapChainDesc1 struct {
	Width       uint32
	Height      uint32
	Format      uint32
	Stereo      int32
	SampleCount uint32
	SampleQuality uint32
	BufferUsage uint32
	BufferCount uint32
	Scaling     int32
	SwapEffect  int32
	AlphaMode   int32
	Flags       uint32
}

const (
	dxgiUsageRenderTargetOutput = 1 << 5
	dxgiScalingStretch          = 0
	dxgiSwapEffectFlipDiscard   = 4
	dxgiAlphaModeUnspecified    = 0

	dxgiSwapChainGetBuffer     = 9  // IDXGISwapChain
	dxgiSwapChainPresent       = 8  // IDXGISwapChain
	dxgiSwapChain3GetCurrentBackBufferIndex = 28 // IDXGISwapChain3
	dxgiFactoryCreateSwapChainForHwnd = 15 // IDXGIFactory2
)

// NewSwapchain implements driver.Presenter by creating a flip-model
// IDXGISwapChain3 against the window's HWND, matching spec.md §6's
// exit path for presentation (0/1/2/3-buffered, clamped to [2,3]).
func (g *GPU) NewSwapchain(win wsi.Window, bufferCount int, pf driver.PixelFmt) (driver.Swapchain, error) {
	if win == nil {
		return nil, driver.ErrWindow
	}
	if bufferCount < 2 {
		bufferCount = 2
	}
	if bufferCount > 3 {
		bufferCount = 3
	}

	factory, err := newFactory()
	if err != nil {
		return nil, err
	}
	defer comRelease(factory)

	desc := dxgiSwapChainDesc1{
		Width: uint32(win.Width()), Height: uint32(win.Height()),
		Format:      pixelFmtToDXGI(pf),
		SampleCount: 1,
		BufferUsage: dxgiUsageRenderTargetOutput,
		BufferCount: uint32(bufferCount),
		Scaling:     dxgiScalingStretch,
		SwapEffect:  dxgiSwapEffectFlipDiscard,
		AlphaMode:   dxgiAlphaModeUnspecified,
	}
	var sc1 uintptr
	if _, err := comCall(factory, dxgiFactoryCreateSwapChainForHwnd, g.queue, win.Handle(), uintptr(unsafe.Pointer(&desc)), 0, 0, uintptr(unsafe.Pointer(&sc1))); err != nil {
		return nil, fmt.Errorf("%w: CreateSwapChainForHwnd: %v", driver.ErrCannotPresent, err)
	}

	var sc3 uintptr
	_, err2 := comCall(sc1, 0, uintptr(unsafe.Pointer(&iidIDXGISwapChain3)), uintptr(unsafe.Pointer(&sc3)))
	comRelease(sc1)
	if err2 != nil {
		return nil, fmt.Errorf("%w: QueryInterface IDXGISwapChain3: %v", driver.ErrCannotPresent, err2)
	}

	swc := &Swapchain{gpu: g, swapChain: sc3, win: win, pf: pf, bufferCount: bufferCount}
	if err := swc.fetchBuffers(); err != nil {
		comRelease(sc3)
		return nil, err
	}
	return swc, nil
}

func newFactory() (uintptr, error) {
	var factory uintptr
	if hr, _, _ := procCreateDXGIFactory2.Call(uintptr(dxgiFactoryCreateFlag), uintptr(unsafe.Pointer(&iidIDXGIFactory4)), uintptr(unsafe.Pointer(&factory))); int32(hr) < 0 {
		return 0, fmt.Errorf("d3d12: CreateDXGIFactory2: HRESULT 0x%08X", uint32(hr))
	}
	return factory, nil
}

// Swapchain is the D3D12 driver.Swapchain implementation.
type Swapchain struct {
	gpu         *GPU
	swapChain   uintptr
	win         wsi.Window
	pf          driver.PixelFmt
	bufferCount int

	images []*Image
	raw    []driver.Image
}

func (sc *Swapchain) fetchBuffers() error {
	images := make([]*Image, sc.bufferCount)
	raw := make([]driver.Image, sc.bufferCount)
	for i := 0; i < sc.bufferCount; i++ {
		var res uintptr
		if _, err := comCall(sc.swapChain, dxgiSwapChainGetBuffer, uintptr(i), uintptr(unsafe.Pointer(&iidID3D12Resource)), uintptr(unsafe.Pointer(&res))); err != nil {
			return fmt.Errorf("%w: IDXGISwapChain::GetBuffer(%d): %v", driver.ErrSwapchain, i, err)
		}
		img := &Image{res: res, size: driver.Dim2D{Width: sc.win.Width(), Height: sc.win.Height()}, format: sc.pf, state: driver.StateCommon}
		images[i] = img
		raw[i] = img
	}
	sc.images = images
	sc.raw = raw
	return nil
}

func (sc *Swapchain) releaseBuffers() {
	for _, img := range sc.images {
		img.Destroy()
	}
	sc.images, sc.raw = nil, nil
}

func (sc *Swapchain) Destroy() {
	sc.releaseBuffers()
	comRelease(sc.swapChain)
	sc.swapChain = 0
}

func (sc *Swapchain) Images() []driver.Image { return sc.raw }

func (sc *Swapchain) Next() (int, error) {
	idx, _, _ := syscall.SyscallN(comVtblFn(sc.swapChain, dxgiSwapChain3GetCurrentBackBufferIndex), sc.swapChain)
	if int(idx) < 0 || int(idx) >= len(sc.images) {
		return 0, driver.ErrNoBackbuffer
	}
	return int(idx), nil
}

func (sc *Swapchain) Present(index int, syncInterval int) error {
	if index < 0 || index >= len(sc.images) {
		return errors.New("d3d12: swapchain present index out of range")
	}
	if _, err := comCall(sc.swapChain, dxgiSwapChainPresent, uintptr(syncInterval), 0); err != nil {
		return fmt.Errorf("%w: IDXGISwapChain::Present: %v", driver.ErrSwapchain, err)
	}
	return nil
}

func (sc *Swapchain) Recreate() error {
	sc.releaseBuffers()
	// ResizeBuffers (IDXGISwapChain vtable index 13) with zeroed
	// dimensions/format tells DXGI to match the current window size,
	// which wsi's resize handler has already applied by the time
	// Recreate runs.
	const dxgiSwapChainResizeBuffers = 13
	if _, err := comCall(sc.swapChain, dxgiSwapChainResizeBuffers, uintptr(sc.bufferCount), 0, 0, 0, 0); err != nil {
		return fmt.Errorf("%w: IDXGISwapChain::ResizeBuffers: %v", driver.ErrSwapchain, err)
	}
	return sc.fetchBuffers()
}

func (sc *Swapchain) Format() driver.PixelFmt { return sc.pf }
