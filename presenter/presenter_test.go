package presenter

import (
	"context"
	"testing"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/wsi"
)

// stubWindow is a minimal wsi.Window, enough to exercise Presenter
// without a real platform window (wsi.NewWindow always fails off
// Windows, so New itself is not reachable from these tests).
type stubWindow struct {
	w, h   int
	title  string
	closed bool
}

func (s *stubWindow) Map() error              { return nil }
func (s *stubWindow) Unmap() error            { return nil }
func (s *stubWindow) Resize(w, h int) error   { s.w, s.h = w, h; return nil }
func (s *stubWindow) SetTitle(t string) error { s.title = t; return nil }
func (s *stubWindow) Close()                  { s.closed = true }
func (s *stubWindow) Width() int              { return s.w }
func (s *stubWindow) Height() int             { return s.h }
func (s *stubWindow) Title() string           { return s.title }
func (s *stubWindow) Handle() uintptr         { return 0 }

// newTestPresenter builds a *Presenter directly against a soft.GPU
// swapchain and a stub window, exercising Present/Flip/message-handling
// without going through New's wsi.NewWindow call.
func newTestPresenter(t *testing.T, w, h int) (*Presenter, *gpuctx.GpuContext) {
	t.Helper()
	gc, err := gpuctx.New(&soft.Driver{}, 0, nil)
	if err != nil {
		t.Fatalf("gpuctx.New: %v", err)
	}
	t.Cleanup(gc.Close)

	win := &stubWindow{w: w, h: h}
	sgpu := gc.GPU().(*soft.GPU)
	sc, err := sgpu.NewSwapchain(win, 2, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}

	p := &Presenter{
		win:     win,
		sc:      sc,
		outW:    w,
		outH:    h,
		written: make([]bool, len(sc.Images())),
		open:    true,
	}
	return p, gc
}

func TestPresentTransitionsAndCopiesIntoBackBuffer(t *testing.T) {
	p, gc := newTestPresenter(t, 8, 8)
	defer p.Destroy()

	src, err := gc.GPU().NewImage(driver.BGRA8un, driver.Dim2D{Width: 8, Height: 8}, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	defer src.Destroy()
	si := src.(*soft.Image)
	for i := 0; i < len(si.Pixels()); i += 4 {
		si.Pixels()[i], si.Pixels()[i+1], si.Pixels()[i+2], si.Pixels()[i+3] = 1, 2, 3, 255
	}

	if err := p.Present(gc.CmdBuffer(), src); err != nil {
		t.Fatalf("Present: %v", err)
	}
	back := p.sc.Images()[p.pendingIndex].(*soft.Image)
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if si.State() != driver.StateShaderResource {
		t.Fatalf("source state after Present:\nhave %v\nwant %v", si.State(), driver.StateShaderResource)
	}
	if back.State() != driver.StatePresent {
		t.Fatalf("back buffer state after Present:\nhave %v\nwant %v", back.State(), driver.StatePresent)
	}
	if back.Pixels()[0] != 1 || back.Pixels()[1] != 2 || back.Pixels()[2] != 3 {
		t.Fatalf("back buffer BGR after Present:\nhave (%v,%v,%v)\nwant (1,2,3)", back.Pixels()[0], back.Pixels()[1], back.Pixels()[2])
	}
	gc.ResetRecording()

	if err := p.Flip(1); err != nil {
		t.Fatalf("Flip: %v", err)
	}
}

func TestPresentReusesBackBufferStateAcrossTicks(t *testing.T) {
	p, gc := newTestPresenter(t, 4, 4)
	defer p.Destroy()

	src, err := gc.GPU().NewImage(driver.BGRA8un, driver.Dim2D{Width: 4, Height: 4}, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	defer src.Destroy()

	for tick := 0; tick < 3; tick++ {
		if err := p.Present(gc.CmdBuffer(), src); err != nil {
			t.Fatalf("tick %d Present: %v", tick, err)
		}
		if err := gc.SubmitAndWait(context.Background()); err != nil {
			t.Fatalf("tick %d SubmitAndWait: %v", tick, err)
		}
		if err := p.Flip(1); err != nil {
			t.Fatalf("tick %d Flip: %v", tick, err)
		}
		gc.ResetRecording()
	}
	for i, w := range p.written {
		if !w {
			t.Fatalf("back buffer %d never marked written", i)
		}
	}
}

func TestWindowCloseAndEscapeKeyClosePresenter(t *testing.T) {
	p, _ := newTestPresenter(t, 4, 4)
	defer p.Destroy()

	if !p.IsWindowOpen() {
		t.Fatalf("IsWindowOpen initially: have false, want true")
	}

	p.KeyboardKey(wsi.KeyA, true, 0)
	if !p.IsWindowOpen() {
		t.Fatalf("IsWindowOpen after unrelated key: have false, want true")
	}

	p.KeyboardKey(wsi.KeyEsc, true, 0)
	if p.IsWindowOpen() {
		t.Fatalf("IsWindowOpen after Escape: have true, want false")
	}
}

func TestWindowCloseCallback(t *testing.T) {
	p, _ := newTestPresenter(t, 4, 4)
	defer p.Destroy()

	p.WindowClose(p.win)
	if p.IsWindowOpen() {
		t.Fatalf("IsWindowOpen after WindowClose callback: have true, want false")
	}
}
