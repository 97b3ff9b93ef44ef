package soft

import (
	"errors"

	"github.com/osfg-go/framegen/driver"
)

func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	name := string(data)
	kernelMu.Lock()
	_, ok := kernels[name]
	kernelMu.Unlock()
	if !ok {
		return nil, ErrUnsupportedShader
	}
	return &ShaderCode{name: name}, nil
}

func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &DescHeap{descs: append([]driver.Descriptor(nil), ds...)}, nil
}

func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	t := &DescTable{}
	for _, h := range dh {
		sh, ok := h.(*DescHeap)
		if !ok {
			return nil, errors.New("soft: foreign descriptor heap")
		}
		t.heaps = append(t.heaps, sh)
	}
	return t, nil
}

func (g *GPU) NewPipeline(state *driver.CompState) (driver.Pipeline, error) {
	sc, ok := state.Func.Code.(*ShaderCode)
	if !ok {
		return nil, errors.New("soft: foreign shader code")
	}
	kernelMu.Lock()
	kernel, ok := kernels[sc.name]
	kernelMu.Unlock()
	if !ok {
		return nil, ErrUnsupportedShader
	}
	dt, ok := state.Desc.(*DescTable)
	if !ok {
		return nil, errors.New("soft: foreign descriptor table")
	}
	return &Pipeline{kernel: kernel, table: dt}, nil
}

func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	return &Buffer{id: g.id(), data: make([]byte, size), visible: visible, usage: usg}, nil
}

func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim2D, usg driver.Usage) (driver.Image, error) {
	bpp := bytesPerPixel(pf)
	stride := size.Width * bpp
	return &Image{
		id:     g.id(),
		size:   size,
		format: pf,
		state:  driver.StateCommon,
		pixels: make([]byte, stride*size.Height),
		stride: stride,
	}, nil
}
