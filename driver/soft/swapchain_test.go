package soft_test

import (
	"testing"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
)

// stubWindow is a minimal wsi.Window for exercising driver.Presenter
// implementations without a real platform window.
type stubWindow struct {
	w, h  int
	title string
}

func (s *stubWindow) Map() error                 { return nil }
func (s *stubWindow) Unmap() error                { return nil }
func (s *stubWindow) Resize(w, h int) error       { s.w, s.h = w, h; return nil }
func (s *stubWindow) SetTitle(t string) error     { s.title = t; return nil }
func (s *stubWindow) Close()                      {}
func (s *stubWindow) Width() int                  { return s.w }
func (s *stubWindow) Height() int                 { return s.h }
func (s *stubWindow) Title() string               { return s.title }
func (s *stubWindow) Handle() uintptr             { return 0 }

func newGPU(t *testing.T) *soft.GPU {
	t.Helper()
	gpu, err := (&soft.Driver{}).Open(0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return gpu.(*soft.GPU)
}

func TestNewSwapchainRejectsNilWindow(t *testing.T) {
	gpu := newGPU(t)
	if _, err := gpu.NewSwapchain(nil, 2, driver.BGRA8un); err != driver.ErrWindow {
		t.Fatalf("NewSwapchain(nil):\nhave %v\nwant %v", err, driver.ErrWindow)
	}
}

func TestNewSwapchainClampsBufferCount(t *testing.T) {
	gpu := newGPU(t)
	win := &stubWindow{w: 64, h: 48}

	sc, err := gpu.NewSwapchain(win, 1, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain(1): %v", err)
	}
	if n := len(sc.Images()); n != 2 {
		t.Fatalf("buffer count clamp low:\nhave %v\nwant 2", n)
	}

	sc2, err := gpu.NewSwapchain(win, 8, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain(8): %v", err)
	}
	if n := len(sc2.Images()); n != 3 {
		t.Fatalf("buffer count clamp high:\nhave %v\nwant 3", n)
	}
}

func TestSwapchainNextRoundRobins(t *testing.T) {
	gpu := newGPU(t)
	win := &stubWindow{w: 32, h: 32}
	sc, err := gpu.NewSwapchain(win, 2, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}

	seen := make([]int, 4)
	for i := range seen {
		idx, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen[i] = idx
	}
	want := []int{0, 1, 0, 1}
	for i, w := range want {
		if seen[i] != w {
			t.Fatalf("Next sequence:\nhave %v\nwant %v", seen, want)
		}
	}
}

func TestSwapchainPresentValidatesIndex(t *testing.T) {
	gpu := newGPU(t)
	win := &stubWindow{w: 32, h: 32}
	sc, err := gpu.NewSwapchain(win, 2, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	if err := sc.Present(0, 1); err != nil {
		t.Fatalf("Present(0): %v", err)
	}
	if err := sc.Present(-1, 1); err == nil {
		t.Fatalf("Present(-1): have nil error, want an error")
	}
	if err := sc.Present(len(sc.Images()), 1); err == nil {
		t.Fatalf("Present(out of range): have nil error, want an error")
	}
}

func TestSwapchainImagesRestInCommonState(t *testing.T) {
	gpu := newGPU(t)
	win := &stubWindow{w: 16, h: 16}
	sc, err := gpu.NewSwapchain(win, 2, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	for i, img := range sc.Images() {
		si := img.(*soft.Image)
		if si.State() != driver.StateCommon {
			t.Fatalf("back buffer %d initial state:\nhave %v\nwant %v", i, si.State(), driver.StateCommon)
		}
	}
}

func TestSwapchainRecreateRebuildsAtWindowSize(t *testing.T) {
	gpu := newGPU(t)
	win := &stubWindow{w: 16, h: 16}
	sc, err := gpu.NewSwapchain(win, 3, driver.BGRA8un)
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	win.w, win.h = 32, 24
	if err := sc.Recreate(); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	if n := len(sc.Images()); n != 3 {
		t.Fatalf("buffer count after Recreate:\nhave %v\nwant 3", n)
	}
	for _, img := range sc.Images() {
		if img.Size() != (driver.Dim2D{Width: 32, Height: 24}) {
			t.Fatalf("image size after Recreate:\nhave %v\nwant {32 24}", img.Size())
		}
	}
}
