// Package presenter owns the output window and its flip-model swap
// chain (spec.md §4.6): presenting a source image into the current back
// buffer, flipping, draining window messages, and tracking whether the
// window is still open. It is the one component that talks to wsi.
package presenter

import (
	"fmt"
	"log/slog"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/wsi"
)

// maxOutputWidth and maxOutputHeight cap the window's client area when
// the capture resolution is larger (spec.md §4.6).
const (
	maxOutputWidth  = 1280
	maxOutputHeight = 720
)

// Config selects the output geometry, buffer count, and window chrome.
type Config struct {
	// Width, Height are the desired output dimensions, normally the
	// capture resolution; they are capped at maxOutputWidth/Height.
	Width, Height int
	// BufferCount selects the swap chain's back-buffer count, clamped
	// to [2,3] (spec.md §4.6 default 2).
	BufferCount int
	// Borderless requests an undecorated window. The wsi package this
	// repo carries does not expose window styling, so this is recorded
	// for callers building their own window but otherwise unused here.
	Borderless bool
	Title      string
}

func clampOutput(w, h int) (int, int) {
	if w > maxOutputWidth {
		h = h * maxOutputWidth / w
		w = maxOutputWidth
	}
	if h > maxOutputHeight {
		w = w * maxOutputHeight / h
		h = maxOutputHeight
	}
	return w, h
}

// Overlay is the subset of *overlay.Overlay that Presenter needs to
// composite the stats HUD onto the back buffer before flip, without
// presenter depending on overlay's rendering internals.
type Overlay interface {
	// Image returns the overlay's GPU texture and its dimensions.
	Image() (img driver.Image, w, h int)
	// Visible reports whether the overlay should currently be drawn.
	Visible() bool
	// Offset computes the overlay's destination top-left corner within
	// an outW x outH back buffer.
	Offset(outW, outH int) driver.Off2D
}

// Presenter owns the wsi.Window and driver.Swapchain, and the single
// escape-to-close/window-close input path the pipeline consumes.
type Presenter struct {
	log *slog.Logger

	win wsi.Window
	sc  driver.Swapchain

	outW, outH int

	written      []bool // per-back-buffer: has this index ever been presented into?
	pendingIndex int

	overlay Overlay

	open bool
}

// SetOverlay installs the stats HUD that Present composites onto every
// back buffer while ov.Visible() is true. A nil ov disables compositing.
func (p *Presenter) SetOverlay(ov Overlay) { p.overlay = ov }

// New creates the output window (clamped to the output cap) and its
// swap chain on pres, which must be the same driver.GPU's Presenter
// facet that will record Present's command buffers.
func New(pres driver.Presenter, cfg Config, log *slog.Logger) (*Presenter, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("presenter: invalid geometry %dx%d", cfg.Width, cfg.Height)
	}
	outW, outH := clampOutput(cfg.Width, cfg.Height)
	title := cfg.Title
	if title == "" {
		title = "framegen"
	}

	win, err := wsi.NewWindow(outW, outH, title)
	if err != nil {
		return nil, fmt.Errorf("presenter: new window: %w", err)
	}
	if err := win.Map(); err != nil {
		win.Close()
		return nil, fmt.Errorf("presenter: map window: %w", err)
	}

	bufferCount := cfg.BufferCount
	if bufferCount < 2 {
		bufferCount = 2
	}
	if bufferCount > 3 {
		bufferCount = 3
	}
	sc, err := pres.NewSwapchain(win, bufferCount, driver.BGRA8un)
	if err != nil {
		win.Close()
		return nil, fmt.Errorf("presenter: new swapchain: %w", err)
	}

	p := &Presenter{
		log:     log.With("component", "presenter"),
		win:     win,
		sc:      sc,
		outW:    outW,
		outH:    outH,
		written: make([]bool, len(sc.Images())),
		open:    true,
	}
	wsi.SetWindowHandler(p)
	wsi.SetKeyboardHandler(p)
	return p, nil
}

// Present records into cb the copy of src into the swap chain's next
// writable back buffer, per spec.md §4.6's present() operation: source
// transitions SHADER_RESOURCE → COPY_SOURCE, the back buffer transitions
// into COPY_DEST from wherever it rests (COMMON on its first use, PRESENT
// on every use after), a bounded subresource-0 copy, then both
// transition back. Flip must be called afterward to actually present
// the buffer this call reserved.
func (p *Presenter) Present(cb driver.CmdBuffer, src driver.Image) error {
	idx, err := p.sc.Next()
	if err != nil {
		return fmt.Errorf("presenter: next back buffer: %w", err)
	}
	back := p.sc.Images()[idx]

	backRest := driver.StateCommon
	if p.written[idx] {
		backRest = driver.StatePresent
	}

	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: src, Before: driver.StateShaderResource, After: driver.StateCopySrc}})
	cb.Transition([]driver.Transition{{Img: back, Before: backRest, After: driver.StateCopyDst}})
	cb.CopyImage(&driver.ImageCopy{From: src, To: back, Size: driver.Dim2D{Width: p.outW, Height: p.outH}})
	if p.overlay != nil && p.overlay.Visible() {
		ovImg, ovW, ovH := p.overlay.Image()
		off := p.overlay.Offset(p.outW, p.outH)
		cb.Transition([]driver.Transition{{Img: ovImg, Before: driver.StateShaderResource, After: driver.StateCopySrc}})
		cb.CopyImage(&driver.ImageCopy{From: ovImg, To: back, ToOff: off, Size: driver.Dim2D{Width: ovW, Height: ovH}})
		cb.Transition([]driver.Transition{{Img: ovImg, Before: driver.StateCopySrc, After: driver.StateShaderResource}})
	}

	cb.Transition([]driver.Transition{{Img: back, Before: driver.StateCopyDst, After: driver.StatePresent}})
	cb.Transition([]driver.Transition{{Img: src, Before: driver.StateCopySrc, After: driver.StateShaderResource}})
	cb.EndBlit()

	p.written[idx] = true
	p.pendingIndex = idx
	return nil
}

// Flip presents the back buffer reserved by the most recent Present
// call. The host-blocking wait for the *next* buffer's completion, per
// spec.md §4.6, happens lazily inside the next call to Present (via
// Swapchain.Next), not here.
func (p *Presenter) Flip(syncInterval int) error {
	if err := p.sc.Present(p.pendingIndex, syncInterval); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrSwapchain, err)
	}
	return nil
}

// ProcessMessages drains queued window messages and reports whether the
// window is still open.
func (p *Presenter) ProcessMessages() bool {
	wsi.Dispatch()
	return p.open
}

// IsWindowOpen reports the last known open state without pumping
// messages.
func (p *Presenter) IsWindowOpen() bool { return p.open }

// WindowHandle returns the native handle of the presented window, for
// collaborators that must address it directly, such as hotkey's
// system-wide registration.
func (p *Presenter) WindowHandle() uintptr { return p.win.Handle() }

// WindowClose implements wsi.WindowHandler.
func (p *Presenter) WindowClose(win wsi.Window) {
	if win == p.win {
		p.open = false
	}
}

// WindowResize implements wsi.WindowHandler. It does nothing: the swap
// chain keeps its size until a caller invokes Recreate, and the
// pipeline treats a failed Flip as fatal (ErrPresentDeviceLost) rather
// than recreating the swap chain.
func (p *Presenter) WindowResize(win wsi.Window, newWidth, newHeight int) {}

// KeyboardIn implements wsi.KeyboardHandler.
func (p *Presenter) KeyboardIn(win wsi.Window) {}

// KeyboardOut implements wsi.KeyboardHandler.
func (p *Presenter) KeyboardOut(win wsi.Window) {}

// KeyboardKey implements wsi.KeyboardHandler: Escape closes the window,
// the only keyboard input this pipeline consumes (spec.md §4.6).
func (p *Presenter) KeyboardKey(key wsi.Key, pressed bool, modMask wsi.Modifier) {
	if key == wsi.KeyEsc && pressed {
		p.win.Close()
		p.open = false
	}
}

// Recreate rebuilds the swap chain in response to an ErrSwapchain
// failure (e.g. a window resize).
func (p *Presenter) Recreate() error {
	if err := p.sc.Recreate(); err != nil {
		return err
	}
	p.written = make([]bool, len(p.sc.Images()))
	return nil
}

// Destroy releases the swap chain and closes the window.
func (p *Presenter) Destroy() {
	if p.sc != nil {
		p.sc.Destroy()
	}
	if p.win != nil {
		p.win.Close()
	}
}
