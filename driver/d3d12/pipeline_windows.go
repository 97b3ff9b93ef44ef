//go:build windows

package d3d12

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

type d3d12DescriptorRange struct {
	RangeType                         int32
	NumDescriptors                    uint32
	BaseShaderRegister                uint32
	RegisterSpace                     uint32
	OffsetInDescriptorsFromTableStart uint32
}

type d3d12RootDescTable struct {
	NumDescriptorRanges uint32
	PDescriptorRanges   uintptr
}

// d3d12RootParameter matches D3D12_ROOT_PARAMETER's layout for the
// descriptor-table union member (the only parameter type this backend
// uses, since every binding in the driver.DescHeap/DescTable model is
// table-based).
type d3d12RootParameter struct {
	ParameterType int32
	Table         d3d12RootDescTable
	ShaderVisibility int32
}

type d3d12RootSignatureDesc struct {
	NumParameters  uint32
	PParameters    uintptr
	NumStaticSamplers uint32
	PStaticSamplers   uintptr
	Flags          uint32
}

const (
	rootParamTypeDescTable = 0
	shaderVisibilityAll    = 0
	rootSigVersion1        = 1
)

// rangeTypeFor maps a driver.DescType to the D3D12_DESCRIPTOR_RANGE_TYPE
// it occupies: constants are CBVs, textures are SRVs, images/buffers
// written by the shader are UAVs.
func rangeTypeFor(t driver.DescType) int32 {
	switch t {
	case driver.DConstant:
		return descRangeTypeCBV
	case driver.DTexture:
		return descRangeTypeSRV
	default:
		return descRangeTypeUAV
	}
}

// buildRootSignature serializes one descriptor-table root parameter
// per heap in table, with one range per descriptor the heap declares,
// then creates the ID3D12RootSignature from the serialized blob.
func (g *GPU) buildRootSignature(table *DescTable) (uintptr, error) {
	var allRanges [][]d3d12DescriptorRange
	for _, h := range table.heaps {
		ranges := make([]d3d12DescriptorRange, len(h.descs))
		for i, d := range h.descs {
			ranges[i] = d3d12DescriptorRange{
				RangeType:                         rangeTypeFor(d.Type),
				NumDescriptors:                    uint32(d.Len),
				BaseShaderRegister:                uint32(d.Nr),
				OffsetInDescriptorsFromTableStart: rangeOffsetAppend,
			}
		}
		allRanges = append(allRanges, ranges)
	}

	params := make([]d3d12RootParameter, len(table.heaps))
	for i, ranges := range allRanges {
		params[i] = d3d12RootParameter{
			ParameterType: rootParamTypeDescTable,
			Table: d3d12RootDescTable{
				NumDescriptorRanges: uint32(len(ranges)),
				PDescriptorRanges:   uintptr(unsafe.Pointer(&ranges[0])),
			},
			ShaderVisibility: shaderVisibilityAll,
		}
	}

	desc := d3d12RootSignatureDesc{}
	if len(params) > 0 {
		desc.NumParameters = uint32(len(params))
		desc.PParameters = uintptr(unsafe.Pointer(&params[0]))
	}

	var blob, errBlob uintptr
	hr, _, _ := procD3D12SerializeRootSig.Call(uintptr(unsafe.Pointer(&desc)), uintptr(rootSigVersion1), uintptr(unsafe.Pointer(&blob)), uintptr(unsafe.Pointer(&errBlob)))
	if int32(hr) < 0 {
		return 0, fmt.Errorf("d3d12: D3D12SerializeRootSignature: HRESULT 0x%08X", uint32(hr))
	}
	defer comRelease(blob)
	if errBlob != 0 {
		defer comRelease(errBlob)
	}

	ptr, _, _ := syscall.SyscallN(comVtblFn(blob, d3dBlobGetBufferPointer), blob)
	sz, _, _ := syscall.SyscallN(comVtblFn(blob, d3dBlobGetBufferSize), blob)

	var rootSig uintptr
	if _, err := comCall(g.device, d3d12DeviceCreateRootSignature, 0, ptr, sz, uintptr(unsafe.Pointer(&iidID3D12RootSignature)), uintptr(unsafe.Pointer(&rootSig))); err != nil {
		return 0, fmt.Errorf("d3d12: CreateRootSignature: %w", err)
	}
	return rootSig, nil
}

type d3d12ShaderBytecode struct {
	PShaderBytecode uintptr
	BytecodeLength  uintptr
}

type d3d12ComputePipelineStateDesc struct {
	RootSignature uintptr
	CS            d3d12ShaderBytecode
	NodeMask      uint32
	CachedPSO     d3d12ShaderBytecode
	Flags         uint32
}

// Pipeline is the D3D12 driver.Pipeline implementation: an
// ID3D12RootSignature built from the CompState's DescTable layout,
// paired with the ID3D12PipelineState compiled against it.
type Pipeline struct {
	rootSig uintptr
	pso     uintptr
	table   *DescTable
}

func (g *GPU) NewPipeline(state *driver.CompState) (driver.Pipeline, error) {
	sc, ok := state.Func.Code.(*ShaderCode)
	if !ok {
		return nil, errors.New("d3d12: foreign shader code")
	}
	table, ok := state.Desc.(*DescTable)
	if !ok {
		return nil, errors.New("d3d12: foreign descriptor table")
	}

	rootSig, err := g.buildRootSignature(table)
	if err != nil {
		return nil, err
	}

	psoDesc := d3d12ComputePipelineStateDesc{
		RootSignature: rootSig,
		CS:            d3d12ShaderBytecode{PShaderBytecode: uintptr(unsafe.Pointer(&sc.bytes[0])), BytecodeLength: uintptr(len(sc.bytes))},
	}
	var pso uintptr
	if _, err := comCall(g.device, d3d12DeviceCreateComputePipelineState, uintptr(unsafe.Pointer(&psoDesc)), uintptr(unsafe.Pointer(&iidID3D12PipelineState)), uintptr(unsafe.Pointer(&pso))); err != nil {
		comRelease(rootSig)
		return nil, fmt.Errorf("d3d12: CreateComputePipelineState: %w", err)
	}
	return &Pipeline{rootSig: rootSig, pso: pso, table: table}, nil
}

func (p *Pipeline) Destroy() {
	comRelease(p.pso)
	comRelease(p.rootSig)
	p.pso, p.rootSig = 0, 0
}
