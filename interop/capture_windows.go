//go:build windows

package interop

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/driver"
)

const (
	d3d11CtxMap   = 14 // ID3D11DeviceContext::Map
	d3d11CtxUnmap = 15 // ID3D11DeviceContext::Unmap

	d3d11MapRead = 1
)

type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

func comVtblFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// ReadCaptureFrame maps frame's texture (a CPU-readable staging texture,
// per capture.Capturer's contract) on cap's own context, copies its rows
// into a freshly allocated buffer respecting the mapped row pitch, and
// unmaps. It is the Map/row-copy step shared by IngestFromCapture's
// single-device staged path and transfer's cross-adapter bridge.
func ReadCaptureFrame(cap capture.Capturer, frame capture.Frame, width, height int) ([]byte, int, error) {
	context := cap.ContextHandle()
	if context == 0 || frame.Texture == 0 {
		return nil, 0, fmt.Errorf("invalid capture device/context/texture handle")
	}
	if frame.Width != width || frame.Height != height {
		return nil, 0, fmt.Errorf("source dimensions %dx%d do not match %dx%d", frame.Width, frame.Height, width, height)
	}

	var mapped d3d11MappedSubresource
	hr, _, _ := syscall.SyscallN(comVtblFn(context, d3d11CtxMap),
		context, frame.Texture, 0, uintptr(d3d11MapRead), 0, uintptr(unsafe.Pointer(&mapped)))
	if int32(hr) < 0 {
		return nil, 0, fmt.Errorf("ID3D11DeviceContext::Map HRESULT 0x%08X", uint32(hr))
	}
	defer syscall.SyscallN(comVtblFn(context, d3d11CtxUnmap), context, frame.Texture, 0)

	if mapped.PData == 0 || mapped.RowPitch == 0 {
		return nil, 0, fmt.Errorf("Map returned an empty subresource")
	}
	rowBytes := width * 4
	pixels := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData+uintptr(y)*uintptr(mapped.RowPitch))), rowBytes)
		copy(pixels[y*rowBytes:(y+1)*rowBytes], src)
	}
	return pixels, rowBytes, nil
}

// IngestFromCapture implements spec.md §4.3's staged path end to end:
// it reads frame's pixels via ReadCaptureFrame and hands the result to
// Ingest. Map failure is reported as an *IngestFailed, per spec.md
// §4.3's "Map failure is fatal for the current frame".
func IngestFromCapture(ip *Interop, cb driver.CmdBuffer, cap capture.Capturer, frame capture.Frame) error {
	pixels, rowBytes, err := ReadCaptureFrame(cap, frame, ip.cfg.Width, ip.cfg.Height)
	if err != nil {
		return &IngestFailed{Err: err}
	}
	return ip.Ingest(cb, pixels, rowBytes)
}
