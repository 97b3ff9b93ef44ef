package overlay_test

import (
	"context"
	"testing"

	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/overlay"
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

func TestNewSizesPanelFromScale(t *testing.T) {
	gc := newSoftCtx(t)
	ov, err := overlay.New(gc.GPU(), overlay.Config{Scale: 2.0, Show: true, FPS: true}, nil)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}
	defer ov.Destroy()

	_, w, h := ov.Image()
	if w <= 0 || h <= 0 {
		t.Fatalf("panel dims: have %dx%d, want positive", w, h)
	}

	ov1, err := overlay.New(gc.GPU(), overlay.Config{Scale: 1.0, Show: true, FPS: true}, nil)
	if err != nil {
		t.Fatalf("overlay.New (scale 1): %v", err)
	}
	defer ov1.Destroy()
	_, w1, h1 := ov1.Image()
	if w <= w1 || h <= h1 {
		t.Fatalf("scale-2 panel should be larger than scale-1 panel: have %dx%d vs %dx%d", w, h, w1, h1)
	}
}

func TestToggleShowFlipsVisibility(t *testing.T) {
	gc := newSoftCtx(t)
	ov, err := overlay.New(gc.GPU(), overlay.Config{Scale: 1.0, Show: false}, nil)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}
	defer ov.Destroy()

	if ov.Visible() {
		t.Fatalf("Visible at construction: have true, want false")
	}
	ov.ToggleShow()
	if !ov.Visible() {
		t.Fatalf("Visible after one ToggleShow: have false, want true")
	}
	ov.ToggleShow()
	if ov.Visible() {
		t.Fatalf("Visible after two ToggleShow calls: have true, want false")
	}
}

func TestOffsetAnchorsToConfiguredCorner(t *testing.T) {
	gc := newSoftCtx(t)
	const outW, outH = 1280, 720

	cases := []struct {
		pos        overlay.Position
		wantRight  bool
		wantBottom bool
	}{
		{overlay.TopLeft, false, false},
		{overlay.TopRight, true, false},
		{overlay.BottomLeft, false, true},
		{overlay.BottomRight, true, true},
	}
	for _, c := range cases {
		ov, err := overlay.New(gc.GPU(), overlay.Config{Scale: 1.0, Position: c.pos}, nil)
		if err != nil {
			t.Fatalf("overlay.New(%v): %v", c.pos, err)
		}
		_, w, h := ov.Image()
		off := ov.Offset(outW, outH)
		ov.Destroy()

		if c.wantRight && off.X != outW-w-8 {
			t.Fatalf("pos %v: X=%d, want right-anchored", c.pos, off.X)
		}
		if !c.wantRight && off.X != 8 {
			t.Fatalf("pos %v: X=%d, want left-anchored", c.pos, off.X)
		}
		if c.wantBottom && off.Y != outH-h-8 {
			t.Fatalf("pos %v: Y=%d, want bottom-anchored", c.pos, off.Y)
		}
		if !c.wantBottom && off.Y != 8 {
			t.Fatalf("pos %v: Y=%d, want top-anchored", c.pos, off.Y)
		}
	}
}

func TestRenderUploadsNonEmptyPanel(t *testing.T) {
	gc := newSoftCtx(t)
	ov, err := overlay.New(gc.GPU(), overlay.Config{Scale: 1.0, Show: true, FPS: true, FrameTime: true, GPUUsage: true}, nil)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}
	defer ov.Destroy()

	if err := ov.Render(gc.CmdBuffer(), overlay.Stats{FPS: 120, FrameTimeMs: 8.3, GPUUsagePercent: 55}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}

	img, _, _ := ov.Image()
	si := img.(*soft.Image)
	px := si.Pixels()

	var nonBackground bool
	for i := 0; i+3 < len(px); i += 4 {
		if px[i] != 0 || px[i+1] != 0 || px[i+2] != 0 {
			nonBackground = true
			break
		}
	}
	if !nonBackground {
		t.Fatalf("Render produced an all-black panel, text never drew")
	}
}
