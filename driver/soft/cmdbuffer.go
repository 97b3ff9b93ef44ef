package soft

import (
	"errors"

	"github.com/osfg-go/framegen/driver"
)

// op is one recorded command. Commands are accumulated during
// recording and replayed, in order, when the command buffer is
// committed — there is no separate GPU timeline to defer to.
type op func(g *GPU) error

// CmdBuffer is the in-memory driver.CmdBuffer implementation.
type CmdBuffer struct {
	ops        []op
	pipeline   *Pipeline
	heapCopies []int
}

func (cb *CmdBuffer) Destroy() {}

func (cb *CmdBuffer) Begin() error {
	cb.ops = cb.ops[:0]
	cb.pipeline = nil
	cb.heapCopies = nil
	return nil
}

func (cb *CmdBuffer) BeginWork() {}
func (cb *CmdBuffer) EndWork()   {}
func (cb *CmdBuffer) BeginBlit() {}
func (cb *CmdBuffer) EndBlit()   {}

func (cb *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	sp, _ := pl.(*Pipeline)
	cb.pipeline = sp
}

func (cb *CmdBuffer) SetDescTable(table driver.DescTable, heapCopy []int) {
	cb.heapCopies = append(cb.heapCopies[:0], heapCopy...)
}

func (cb *CmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	pl := cb.pipeline
	copies := append([]int(nil), cb.heapCopies...)
	cb.ops = append(cb.ops, func(g *GPU) error {
		if pl == nil {
			return errors.New("soft: dispatch without a bound pipeline")
		}
		return pl.kernel(pl.table.heaps, copies, grpCountX, grpCountY, grpCountZ)
	})
}

func (cb *CmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	from, to, size, fromOff, toOff := param.From, param.To, param.Size, param.FromOff, param.ToOff
	cb.ops = append(cb.ops, func(g *GPU) error {
		sf, ok := from.(*Buffer)
		st, ok2 := to.(*Buffer)
		if !ok || !ok2 {
			return errors.New("soft: foreign buffer in CopyBuffer")
		}
		copy(st.data[toOff:toOff+size], sf.data[fromOff:fromOff+size])
		return nil
	})
}

func (cb *CmdBuffer) CopyImage(param *driver.ImageCopy) {
	from, to, size, fromOff, toOff := param.From, param.To, param.Size, param.FromOff, param.ToOff
	cb.ops = append(cb.ops, func(g *GPU) error {
		sf, ok := from.(*Image)
		st, ok2 := to.(*Image)
		if !ok || !ok2 {
			return errors.New("soft: foreign image in CopyImage")
		}
		bpp := bytesPerPixel(sf.format)
		rowBytes := size.Width * bpp
		for row := 0; row < size.Height; row++ {
			srcOff := (fromOff.Y+row)*sf.stride + fromOff.X*bpp
			dstOff := (toOff.Y+row)*st.stride + toOff.X*bpp
			copy(st.pixels[dstOff:dstOff+rowBytes], sf.pixels[srcOff:srcOff+rowBytes])
		}
		return nil
	})
}

func (cb *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	buf, img, bufOff, rowPitch, imgOff, size := param.Buf, param.Img, param.BufOff, param.RowPitch, param.ImgOff, param.Size
	cb.ops = append(cb.ops, func(g *GPU) error {
		sb, ok := buf.(*Buffer)
		si, ok2 := img.(*Image)
		if !ok || !ok2 {
			return errors.New("soft: foreign resource in CopyBufToImg")
		}
		bpp := bytesPerPixel(si.format)
		rowBytes := size.Width * bpp
		for row := 0; row < size.Height; row++ {
			srcOff := bufOff + int64(row)*rowPitch
			dstOff := (imgOff.Y+row)*si.stride + imgOff.X*bpp
			copy(si.pixels[dstOff:dstOff+rowBytes], sb.data[srcOff:srcOff+int64(rowBytes)])
		}
		return nil
	})
}

func (cb *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	buf, img, bufOff, rowPitch, imgOff, size := param.Buf, param.Img, param.BufOff, param.RowPitch, param.ImgOff, param.Size
	cb.ops = append(cb.ops, func(g *GPU) error {
		sb, ok := buf.(*Buffer)
		si, ok2 := img.(*Image)
		if !ok || !ok2 {
			return errors.New("soft: foreign resource in CopyImgToBuf")
		}
		bpp := bytesPerPixel(si.format)
		rowBytes := size.Width * bpp
		for row := 0; row < size.Height; row++ {
			dstOff := bufOff + int64(row)*rowPitch
			srcOff := (imgOff.Y+row)*si.stride + imgOff.X*bpp
			copy(sb.data[dstOff:dstOff+int64(rowBytes)], si.pixels[srcOff:srcOff+rowBytes])
		}
		return nil
	})
}

func (cb *CmdBuffer) Transition(t []driver.Transition) {
	ts := append([]driver.Transition(nil), t...)
	cb.ops = append(cb.ops, func(g *GPU) error {
		for _, tr := range ts {
			si, ok := tr.Img.(*Image)
			if !ok {
				return errors.New("soft: foreign image in Transition")
			}
			si.state = tr.After
		}
		return nil
	})
}

func (cb *CmdBuffer) End() error { return nil }

func (cb *CmdBuffer) Reset() error {
	cb.ops = nil
	cb.pipeline = nil
	cb.heapCopies = nil
	return nil
}

// replay executes every recorded op, in order, stopping at the first
// error.
func (cb *CmdBuffer) replay(g *GPU) error {
	for _, o := range cb.ops {
		if err := o(g); err != nil {
			return err
		}
	}
	return nil
}
