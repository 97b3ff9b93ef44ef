package opticalflow_test

import (
	"context"
	"testing"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
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

func uploadSolid(t *testing.T, gpu driver.GPU, w, h int, gray byte) driver.Image {
	t.Helper()
	img, err := gpu.NewImage(driver.BGRA8un, driver.Dim2D{Width: w, Height: h}, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	si, ok := img.(*soft.Image)
	if !ok {
		t.Fatalf("soft.GPU.NewImage did not return a *soft.Image")
	}
	px := si.Pixels()
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = gray, gray, gray, 255
	}
	return img
}

func TestOpticalFlowDispatchUniform(t *testing.T) {
	gc := newSoftCtx(t)
	cfg := opticalflow.Config{Width: 32, Height: 32, BlockSize: 8, SearchRadius: 4}

	of, err := opticalflow.New(gc.GPU(), cfg, 0.1, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	defer of.Destroy()

	cur := uploadSolid(t, gc.GPU(), cfg.Width, cfg.Height, 128)
	prev := uploadSolid(t, gc.GPU(), cfg.Width, cfg.Height, 128)

	if err := of.Dispatch(context.Background(), gc.CmdBuffer(), prev, cur); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	of.ReadSceneStats()
	if of.MeanSAD() != 0 {
		t.Fatalf("MeanSAD:\nhave %v\nwant 0", of.MeanSAD())
	}
	if of.Stats.SceneChanged {
		t.Fatalf("SceneChanged:\nhave true\nwant false")
	}

	mvW, mvH := of.MVSize()
	motion, ok := of.Motion().(*soft.Image)
	if !ok {
		t.Fatalf("Motion() did not return a *soft.Image")
	}
	for by := 0; by < mvH; by++ {
		for bx := 0; bx < mvW; bx++ {
			v := opticalflow.ReadVector(motion.Pixels(), motion.Stride(), bx, by)
			if v.X != 0 || v.Y != 0 {
				t.Fatalf("motion(%d,%d):\nhave %v\nwant (0,0)", bx, by, v)
			}
		}
	}
	if gc.Submits() != 1 {
		t.Fatalf("Submits:\nhave %v\nwant 1", gc.Submits())
	}
}

func TestOpticalFlowSceneChangeDetected(t *testing.T) {
	gc := newSoftCtx(t)
	cfg := opticalflow.Config{Width: 16, Height: 16, BlockSize: 8, SearchRadius: 0}

	of, err := opticalflow.New(gc.GPU(), cfg, 0.1, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	defer of.Destroy()

	// SearchRadius 0 forces the zero vector, so two frames with
	// nothing in common anywhere produce a maximal, unexplainable SAD.
	cur := uploadSolid(t, gc.GPU(), cfg.Width, cfg.Height, 0)
	prev := uploadSolid(t, gc.GPU(), cfg.Width, cfg.Height, 255)

	if err := of.Dispatch(context.Background(), gc.CmdBuffer(), prev, cur); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	of.ReadSceneStats()
	if !of.Stats.SceneChanged {
		t.Fatalf("SceneChanged:\nhave false\nwant true (meanSAD=%v)", of.MeanSAD())
	}
}

func TestOpticalFlowRejectsInvalidBlockSize(t *testing.T) {
	gc := newSoftCtx(t)
	_, err := opticalflow.New(gc.GPU(), opticalflow.Config{Width: 16, Height: 16, BlockSize: 64}, 0, nil)
	if err == nil {
		t.Fatalf("New: want error for out-of-range BlockSize, got nil")
	}
}

func TestOpticalFlowDescTableNotRebuiltForSameInputs(t *testing.T) {
	gc := newSoftCtx(t)
	cfg := opticalflow.Config{Width: 16, Height: 16, BlockSize: 8, SearchRadius: 2}
	of, err := opticalflow.New(gc.GPU(), cfg, 0, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	defer of.Destroy()

	cur := uploadSolid(t, gc.GPU(), cfg.Width, cfg.Height, 64)
	prev := uploadSolid(t, gc.GPU(), cfg.Width, cfg.Height, 64)

	for i := 0; i < 3; i++ {
		if err := of.Dispatch(context.Background(), gc.CmdBuffer(), prev, cur); err != nil {
			t.Fatalf("Dispatch #%d: %v", i, err)
		}
		if err := gc.SubmitAndWait(context.Background()); err != nil {
			t.Fatalf("SubmitAndWait #%d: %v", i, err)
		}
		if err := gc.ResetRecording(); err != nil {
			t.Fatalf("ResetRecording #%d: %v", i, err)
		}
	}
}
