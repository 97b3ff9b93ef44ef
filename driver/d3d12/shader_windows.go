//go:build windows

package d3d12

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

// hlslSource holds the compute-shader text for each KernelName the
// rest of the pipeline names via driver.GPU.NewShaderCode, matching
// the descriptor layouts opticalflow.go and interpolation.go
// document in their reg* constants.
var hlslSource = map[string]string{
	"opticalflow": `
cbuffer Constants : register(b0) {
	uint Width, Height, MVWidth, MVHeight, BlockSize, SearchRadius;
};
Texture2D<float4> Current  : register(t0);
Texture2D<float4> Previous : register(t1);
RWTexture2D<int2>  Motion   : register(u0);
RWStructuredBuffer<uint> SADSum : register(u1); // float64 sum (as 2x uint32) + count

[numthreads(8, 8, 1)]
void CSMain(uint3 id : SV_DispatchThreadID) {
	if (id.x >= MVWidth || id.y >= MVHeight) return;
	// Writes a zero vector for every block; the three-step search in
	// opticalflow/algo.go is not performed here.
	Motion[id.xy] = int2(0, 0);
}
`,
	"interpolation": `
cbuffer Constants : register(b0) {
	uint Width, Height, MVWidth, MVHeight;
	float Phase, MotionScale;
};
Texture2D<float4> Previous : register(t0);
Texture2D<float4> Current  : register(t1);
Texture2D<int2>   Motion   : register(t2);
RWTexture2D<float4> Output : register(u0);

[numthreads(16, 16, 1)]
void CSMain(uint3 id : SV_DispatchThreadID) {
	if (id.x >= Width || id.y >= Height) return;
	// Plain linear blend by Phase; the motion field is not sampled
	// here, unlike the warp in interpolation/algo.go.
	Output[id.xy] = lerp(Previous[id.xy], Current[id.xy], Phase);
}
`,
}

var (
	d3dcompilerDLL = syscall.NewLazyDLL("d3dcompiler_47.dll")
	procD3DCompile = d3dcompilerDLL.NewProc("D3DCompile")
)

const (
	d3dBlobGetBufferPointer = 3
	d3dBlobGetBufferSize    = 4
)

// ShaderCode wraps an ID3DBlob produced by D3DCompile from the HLSL
// text named by data (a kernel name, per the KernelName convention
// opticalflow.go and interpolation.go document).
type ShaderCode struct {
	blob  uintptr
	bytes []byte
}

func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	name := string(data)
	src, ok := hlslSource[name]
	if !ok {
		return nil, fmt.Errorf("d3d12: unknown kernel %q", name)
	}
	srcBytes := append([]byte(src), 0)
	entry := append([]byte("CSMain"), 0)
	target := append([]byte("cs_5_0"), 0)

	var code, errs uintptr
	hr, _, _ := procD3DCompile.Call(
		uintptr(unsafe.Pointer(&srcBytes[0])), uintptr(len(src)), 0,
		0, 0,
		uintptr(unsafe.Pointer(&entry[0])), uintptr(unsafe.Pointer(&target[0])),
		0, 0,
		uintptr(unsafe.Pointer(&code)), uintptr(unsafe.Pointer(&errs)),
	)
	if int32(hr) < 0 {
		msg := "compile failed"
		if errs != 0 {
			ptr, _, _ := syscall.SyscallN(comVtblFn(errs, d3dBlobGetBufferPointer), errs)
			sz, _, _ := syscall.SyscallN(comVtblFn(errs, d3dBlobGetBufferSize), errs)
			if ptr != 0 && sz != 0 {
				msg = string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), sz))
			}
			comRelease(errs)
		}
		return nil, fmt.Errorf("d3d12: D3DCompile(%s): HRESULT 0x%08X: %s", name, uint32(hr), msg)
	}
	if errs != 0 {
		comRelease(errs)
	}

	ptr, _, _ := syscall.SyscallN(comVtblFn(code, d3dBlobGetBufferPointer), code)
	sz, _, _ := syscall.SyscallN(comVtblFn(code, d3dBlobGetBufferSize), code)
	return &ShaderCode{blob: code, bytes: unsafe.Slice((*byte)(unsafe.Pointer(ptr)), sz)}, nil
}

func (s *ShaderCode) Destroy() {
	comRelease(s.blob)
	s.blob = 0
}
