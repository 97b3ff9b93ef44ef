package soft

import (
	"errors"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/wsi"
)

// NewSwapchain implements driver.Presenter. Back buffers are ordinary
// in-memory Images; since there is no real display to wait on, Next
// never blocks and Present is a bookkeeping no-op beyond counting
// presents, letting presenter package tests exercise the exact
// same back-buffer state machine a hardware backend would enforce via
// CmdBuffer.Transition.
func (g *GPU) NewSwapchain(win wsi.Window, bufferCount int, pf driver.PixelFmt) (driver.Swapchain, error) {
	if win == nil {
		return nil, driver.ErrWindow
	}
	if bufferCount < 2 {
		bufferCount = 2
	}
	if bufferCount > 3 {
		bufferCount = 3
	}
	sc := &Swapchain{gpu: g, win: win, pf: pf}
	if err := sc.buildImages(bufferCount); err != nil {
		return nil, err
	}
	return sc, nil
}

// Swapchain is the in-memory driver.Swapchain implementation.
type Swapchain struct {
	gpu *GPU
	win wsi.Window
	pf  driver.PixelFmt

	images []*Image
	raw    []driver.Image

	next      int
	presented int64
}

func (sc *Swapchain) buildImages(n int) error {
	w, h := sc.win.Width(), sc.win.Height()
	if w <= 0 || h <= 0 {
		return errors.New("soft: swapchain window has zero size")
	}
	images := make([]*Image, n)
	raw := make([]driver.Image, n)
	for i := range images {
		img, err := sc.gpu.NewImage(sc.pf, driver.Dim2D{Width: w, Height: h}, driver.UCopyDst|driver.UPresent)
		if err != nil {
			return err
		}
		si := img.(*Image)
		si.state = driver.StateCommon
		images[i] = si
		raw[i] = img
	}
	sc.images = images
	sc.raw = raw
	sc.next = 0
	return nil
}

func (sc *Swapchain) Destroy() {
	for _, img := range sc.images {
		img.Destroy()
	}
	sc.images = nil
	sc.raw = nil
}

func (sc *Swapchain) Images() []driver.Image { return sc.raw }

// Next always succeeds immediately: the in-memory backend has no GPU
// timeline for a back buffer's previous presentation to still be
// in flight on.
func (sc *Swapchain) Next() (int, error) {
	idx := sc.next
	sc.next = (sc.next + 1) % len(sc.images)
	return idx, nil
}

func (sc *Swapchain) Present(index int, syncInterval int) error {
	if index < 0 || index >= len(sc.images) {
		return errors.New("soft: swapchain present index out of range")
	}
	sc.presented++
	return nil
}

func (sc *Swapchain) Recreate() error {
	return sc.buildImages(len(sc.images))
}

func (sc *Swapchain) Format() driver.PixelFmt { return sc.pf }
