package interpolation_test

import (
	"context"
	"testing"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/interpolation"
	"github.com/osfg-go/framegen/opticalflow"
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

func uploadSolid(t *testing.T, gpu driver.GPU, w, h int, r, g, b byte) driver.Image {
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

func TestInterpolationDispatchEndToEnd(t *testing.T) {
	gc := newSoftCtx(t)
	const w, h = 32, 32

	ofCfg := opticalflow.Config{Width: w, Height: h, BlockSize: 8, SearchRadius: 4}
	of, err := opticalflow.New(gc.GPU(), ofCfg, 0, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	defer of.Destroy()

	ip, err := interpolation.New(gc.GPU(), interpolation.Config{Width: w, Height: h}, nil)
	if err != nil {
		t.Fatalf("interpolation.New: %v", err)
	}
	defer ip.Destroy()

	prev := uploadSolid(t, gc.GPU(), w, h, 10, 20, 30)
	curr := uploadSolid(t, gc.GPU(), w, h, 200, 210, 220)

	if err := of.Dispatch(context.Background(), gc.CmdBuffer(), prev, curr); err != nil {
		t.Fatalf("OpticalFlow.Dispatch: %v", err)
	}
	mvW, mvH := of.MVSize()
	if err := ip.Dispatch(context.Background(), gc.CmdBuffer(), prev, curr, of.Motion(), mvW, mvH, 0.5); err != nil {
		t.Fatalf("Interpolation.Dispatch: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}

	out := ip.Frame().(*soft.Image)
	px := out.Pixels()
	for i := 0; i < len(px); i += 4 {
		if px[i+3] != 255 {
			t.Fatalf("alpha at byte %d:\nhave %v\nwant 255", i+3, px[i+3])
		}
	}
	// Both frames are uniform in color, so every candidate offset ties
	// with the zero vector and OpticalFlow's tie-break keeps the
	// motion field at zero; every output pixel is then the exact
	// midpoint blend of the two solid colors.
	wantB, wantG, wantR := byte(125), byte(115), byte(105)
	off := (h/2)*out.Stride() + (w/2)*4
	if px[off] < wantB-2 || px[off] > wantB+2 {
		t.Fatalf("center pixel B:\nhave %v\nwant ~%v", px[off], wantB)
	}
	if px[off+1] < wantG-2 || px[off+1] > wantG+2 {
		t.Fatalf("center pixel G:\nhave %v\nwant ~%v", px[off+1], wantG)
	}
	if px[off+2] < wantR-2 || px[off+2] > wantR+2 {
		t.Fatalf("center pixel R:\nhave %v\nwant ~%v", px[off+2], wantR)
	}
}

func TestInterpolationRequiresMatchingOpticalFlowDispatch(t *testing.T) {
	// Dispatching interpolation against a motion field that has never
	// been populated by a matching OpticalFlow pass is a caller
	// contract violation (spec.md §4 invariant 3), not something this
	// package detects on its own: the motion image is just a buffer of
	// zeros until OpticalFlow writes it. This test documents that by
	// asserting the degenerate (zero-initialized) case dispatches and
	// completes without an error.
	gc := newSoftCtx(t)
	const w, h = 16, 16

	ofCfg := opticalflow.Config{Width: w, Height: h, BlockSize: 8, SearchRadius: 4}
	of, err := opticalflow.New(gc.GPU(), ofCfg, 0, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	defer of.Destroy()
	ip, err := interpolation.New(gc.GPU(), interpolation.Config{Width: w, Height: h}, nil)
	if err != nil {
		t.Fatalf("interpolation.New: %v", err)
	}
	defer ip.Destroy()

	prev := uploadSolid(t, gc.GPU(), w, h, 1, 2, 3)
	curr := uploadSolid(t, gc.GPU(), w, h, 1, 2, 3)
	mvW, mvH := of.MVSize()

	if err := ip.Dispatch(context.Background(), gc.CmdBuffer(), prev, curr, of.Motion(), mvW, mvH, 0.5); err != nil {
		t.Fatalf("Interpolation.Dispatch: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
}
