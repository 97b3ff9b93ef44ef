package transfer_test

import (
	"context"
	"testing"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/transfer"
)

func newSoftCtx(t *testing.T) *gpuctx.GpuContext {
	t.Helper()
	gc, err := gpuctx.New(&soft.Driver{}, 0, nil)
	if err != nil {
		t.Fatalf("gpuctx.New: %v", err)
	}
	t.Cleanup(gc.Close)
	return gc
}

func solidImage(t *testing.T, gpu driver.GPU, w, h int, r, g, b byte) driver.Image {
	t.Helper()
	img, err := gpu.NewImage(driver.BGRA8un, driver.Dim2D{Width: w, Height: h}, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	si := img.(*soft.Image)
	px := si.Pixels()
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = b, g, r, 255
	}
	return img
}

// soft.GPU always reports CrossAdapterRowMajor true, so two distinct
// soft GpuContexts always select MethodSharedHeap; MethodStagedCPU is
// exercised by wrapping the source GPU in a type that reports the
// capability as unsupported.
type noCrossAdapterGPU struct{ driver.GPU }

func (g noCrossAdapterGPU) Limits() driver.Limits {
	l := g.GPU.Limits()
	l.CrossAdapterRowMajor = false
	return l
}

func TestNewSelectsSharedHeapWhenBothAdaptersSupportIt(t *testing.T) {
	src := newSoftCtx(t)
	dst := newSoftCtx(t)

	tr, err := transfer.New(src.GPU(), dst.GPU(), transfer.Config{Width: 8, Height: 8}, nil)
	if err != nil {
		t.Fatalf("transfer.New: %v", err)
	}
	defer tr.Destroy()
	if tr.Method() != transfer.MethodSharedHeap {
		t.Fatalf("Method:\nhave %v\nwant %v", tr.Method(), transfer.MethodSharedHeap)
	}
}

func TestNewSelectsStagedCPUWhenEitherAdapterLacksSupport(t *testing.T) {
	src := newSoftCtx(t)
	dst := newSoftCtx(t)

	tr, err := transfer.New(noCrossAdapterGPU{src.GPU()}, dst.GPU(), transfer.Config{Width: 8, Height: 8}, nil)
	if err != nil {
		t.Fatalf("transfer.New: %v", err)
	}
	defer tr.Destroy()
	if tr.Method() != transfer.MethodStagedCPU {
		t.Fatalf("Method:\nhave %v\nwant %v", tr.Method(), transfer.MethodStagedCPU)
	}
}

func TestSharedHeapTransferRoundTripsPixels(t *testing.T) {
	src := newSoftCtx(t)
	dst := newSoftCtx(t)

	tr, err := transfer.New(src.GPU(), dst.GPU(), transfer.Config{Width: 4, Height: 4}, nil)
	if err != nil {
		t.Fatalf("transfer.New: %v", err)
	}
	defer tr.Destroy()

	srcTex := solidImage(t, src.GPU(), 4, 4, 11, 22, 33)
	defer srcTex.Destroy()

	if err := tr.RecordSource(src.CmdBuffer(), srcTex); err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	if err := src.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("source SubmitAndWait: %v", err)
	}
	src.ResetRecording()

	if err := tr.RecordDest(dst.CmdBuffer()); err != nil {
		t.Fatalf("RecordDest: %v", err)
	}
	if err := dst.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("dest SubmitAndWait: %v", err)
	}
	dst.ResetRecording()
	tr.Advance()

	cur := tr.Current().(*soft.Image)
	if cur.Pixels()[0] != 33 || cur.Pixels()[1] != 22 || cur.Pixels()[2] != 11 {
		t.Fatalf("Current BGR:\nhave (%v,%v,%v)\nwant (33,22,11)", cur.Pixels()[0], cur.Pixels()[1], cur.Pixels()[2])
	}
	if tr.TransferCount() != 1 {
		t.Fatalf("TransferCount:\nhave %v\nwant 1", tr.TransferCount())
	}
}

func TestStagedCPUTransferRoundTripsPixels(t *testing.T) {
	src := newSoftCtx(t)
	dst := newSoftCtx(t)

	tr, err := transfer.New(noCrossAdapterGPU{src.GPU()}, dst.GPU(), transfer.Config{Width: 4, Height: 4}, nil)
	if err != nil {
		t.Fatalf("transfer.New: %v", err)
	}
	defer tr.Destroy()

	srcTex := solidImage(t, src.GPU(), 4, 4, 44, 55, 66)
	defer srcTex.Destroy()

	if err := tr.RecordSource(src.CmdBuffer(), srcTex); err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	if err := src.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("source SubmitAndWait: %v", err)
	}
	src.ResetRecording()

	if err := tr.RecordDest(dst.CmdBuffer()); err != nil {
		t.Fatalf("RecordDest: %v", err)
	}
	if err := dst.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("dest SubmitAndWait: %v", err)
	}
	tr.Advance()

	cur := tr.Current().(*soft.Image)
	if cur.Pixels()[0] != 66 || cur.Pixels()[1] != 55 || cur.Pixels()[2] != 44 {
		t.Fatalf("Current BGR:\nhave (%v,%v,%v)\nwant (66,55,44)", cur.Pixels()[0], cur.Pixels()[1], cur.Pixels()[2])
	}
}

func TestAdvanceRotatesTripleBufferPreservingCurrentAsPrevious(t *testing.T) {
	src := newSoftCtx(t)
	dst := newSoftCtx(t)

	tr, err := transfer.New(src.GPU(), dst.GPU(), transfer.Config{Width: 4, Height: 4}, nil)
	if err != nil {
		t.Fatalf("transfer.New: %v", err)
	}
	defer tr.Destroy()

	runOne := func(r, g, b byte) {
		srcTex := solidImage(t, src.GPU(), 4, 4, r, g, b)
		defer srcTex.Destroy()
		if err := tr.RecordSource(src.CmdBuffer(), srcTex); err != nil {
			t.Fatalf("RecordSource: %v", err)
		}
		if err := src.SubmitAndWait(context.Background()); err != nil {
			t.Fatalf("source SubmitAndWait: %v", err)
		}
		src.ResetRecording()
		if err := tr.RecordDest(dst.CmdBuffer()); err != nil {
			t.Fatalf("RecordDest: %v", err)
		}
		if err := dst.SubmitAndWait(context.Background()); err != nil {
			t.Fatalf("dest SubmitAndWait: %v", err)
		}
		dst.ResetRecording()
	}

	runOne(1, 2, 3)
	tr.Advance()
	runOne(9, 8, 7)
	tr.Advance()

	cur := tr.Current().(*soft.Image)
	prev := tr.Previous().(*soft.Image)
	if cur.Pixels()[0] != 7 {
		t.Fatalf("Current B after second transfer:\nhave %v\nwant 7", cur.Pixels()[0])
	}
	if prev.Pixels()[0] != 3 {
		t.Fatalf("Previous B after second transfer:\nhave %v\nwant 3", prev.Pixels()[0])
	}
}
