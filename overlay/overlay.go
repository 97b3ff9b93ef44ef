// Package overlay renders the pipeline's FPS/frame-time/GPU-usage HUD
// (spec.md §6's [Overlay] section) into a small RGBA panel using
// golang.org/x/image/font/basicfont and golang.org/x/image/draw, then
// uploads it as a GPU texture the presenter composites onto the back
// buffer before flip (spec.md's Non-goals rule out a GPU text shader or
// font shaping; this keeps the overlay an external, CPU-side
// collaborator instead).
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/osfg-go/framegen/driver"
)

// Position selects which corner of the output the overlay panel is
// anchored to, matching spec.md §6's [Overlay] Position ∈ {0,1,2,3}.
type Position int

const (
	TopLeft Position = iota
	TopRight
	BottomLeft
	BottomRight
)

// glyphW, glyphH are the base (unscaled) panel dimensions, sized for
// three lines of basicfont.Face7x13 text with a margin.
const (
	glyphW = 180
	glyphH = 58
	margin = 8

	minScale = 0.5
	maxScale = 3.0

	rowPitchAlignment = 256
)

func alignUp(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}

func clampScale(s float64) float64 {
	if s < minScale {
		return minScale
	}
	if s > maxScale {
		return maxScale
	}
	return s
}

// Config selects the overlay's anchor corner and scale. Show/FPS/
// FrameTime/GPUUsage are runtime-toggleable via Overlay's setters
// rather than fixed at construction, since the hotkey-bound
// ToggleOverlay action flips Show after New returns.
type Config struct {
	Position  Position
	Scale     float64
	Show      bool
	FPS       bool
	FrameTime bool
	GPUUsage  bool
}

// Stats is the data an Overlay renders. Deliberately independent of
// pipeline.Stats/capture.Stats so this package has no dependency on
// either; the CLI harness computes these from both before calling
// Render.
type Stats struct {
	FPS             float64
	FrameTimeMs     float64
	GPUUsagePercent float64
}

// Overlay owns the HUD's CPU-side glyph canvas, its scaled RGBA panel,
// and the GPU texture + upload buffer the panel is copied into.
type Overlay struct {
	gpu driver.GPU
	log *slog.Logger

	position Position
	scale    float64

	showFPS       bool
	showFrameTime bool
	showGPUUsage  bool
	show          atomic.Bool

	panelW, panelH int
	glyphs         *image.RGBA
	panel          *image.RGBA

	image    driver.Image
	upload   driver.Buffer
	rowPitch int64
}

// New allocates the overlay's glyph/panel canvases and its GPU-side
// texture, sized once from cfg.Scale.
func New(gpu driver.GPU, cfg Config, log *slog.Logger) (*Overlay, error) {
	if log == nil {
		log = slog.Default()
	}
	scale := clampScale(cfg.Scale)
	if scale == 0 {
		scale = 1.0
	}
	panelW := int(float64(glyphW) * scale)
	panelH := int(float64(glyphH) * scale)

	img, err := gpu.NewImage(driver.BGRA8un, driver.Dim2D{Width: panelW, Height: panelH}, driver.UShaderRead|driver.UCopyDst)
	if err != nil {
		return nil, fmt.Errorf("overlay: texture: %w", err)
	}

	rowPitch := alignUp(int64(panelW*4), rowPitchAlignment)
	upload, err := gpu.NewBuffer(rowPitch*int64(panelH), true, driver.UCopySrc)
	if err != nil {
		img.Destroy()
		return nil, fmt.Errorf("overlay: upload buffer: %w", err)
	}

	ov := &Overlay{
		gpu:           gpu,
		log:           log.With("component", "overlay"),
		position:      cfg.Position,
		scale:         scale,
		showFPS:       cfg.FPS,
		showFrameTime: cfg.FrameTime,
		showGPUUsage:  cfg.GPUUsage,
		panelW:        panelW,
		panelH:        panelH,
		glyphs:        image.NewRGBA(image.Rect(0, 0, glyphW, glyphH)),
		panel:         image.NewRGBA(image.Rect(0, 0, panelW, panelH)),
		image:         img,
		upload:        upload,
		rowPitch:      rowPitch,
	}
	ov.show.Store(cfg.Show)
	return ov, nil
}

// ToggleShow flips overlay visibility, the hotkey-bound ToggleOverlay
// action's effect.
func (ov *Overlay) ToggleShow() { ov.show.Store(!ov.show.Load()) }

// Visible reports whether the overlay should currently be composited.
func (ov *Overlay) Visible() bool { return ov.show.Load() }

// Image returns the overlay's GPU texture and its dimensions.
func (ov *Overlay) Image() (driver.Image, int, int) { return ov.image, ov.panelW, ov.panelH }

// Offset computes the panel's top-left destination coordinate within
// an outW x outH back buffer, for the anchor corner this Overlay was
// configured with.
func (ov *Overlay) Offset(outW, outH int) driver.Off2D {
	x, y := margin, margin
	switch ov.position {
	case TopRight:
		x = outW - ov.panelW - margin
	case BottomLeft:
		y = outH - ov.panelH - margin
	case BottomRight:
		x = outW - ov.panelW - margin
		y = outH - ov.panelH - margin
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return driver.Off2D{X: x, Y: y}
}

var (
	panelBG   = color.RGBA{R: 0, G: 0, B: 0, A: 180}
	textColor = color.RGBA{R: 255, G: 255, B: 80, A: 255}
)

// Render draws the requested stat lines into the glyph canvas, scales
// it into the panel buffer, and uploads the panel into the GPU texture
// via the same staged buffer-to-image copy interop.Ingest uses.
func (ov *Overlay) Render(cb driver.CmdBuffer, stats Stats) error {
	draw.Draw(ov.glyphs, ov.glyphs.Bounds(), image.NewUniform(panelBG), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  ov.glyphs,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
	}
	line := 0
	drawLine := func(s string) {
		d.Dot = fixed.P(4, 14+line*16)
		d.DrawString(s)
		line++
	}
	if ov.showFPS {
		drawLine(fmt.Sprintf("FPS: %.1f", stats.FPS))
	}
	if ov.showFrameTime {
		drawLine(fmt.Sprintf("Frame: %.2fms", stats.FrameTimeMs))
	}
	if ov.showGPUUsage {
		drawLine(fmt.Sprintf("GPU: %.0f%%", stats.GPUUsagePercent))
	}

	draw.CatmullRom.Scale(ov.panel, ov.panel.Bounds(), ov.glyphs, ov.glyphs.Bounds(), draw.Src, nil)

	dst := ov.upload.Bytes()
	if dst == nil {
		return fmt.Errorf("overlay: upload buffer is not host visible")
	}
	rowBytes := ov.panelW * 4
	for y := 0; y < ov.panelH; y++ {
		srcRow := ov.panel.Pix[y*ov.panel.Stride : y*ov.panel.Stride+rowBytes]
		dstRow := dst[int64(y)*ov.rowPitch : int64(y)*ov.rowPitch+int64(rowBytes)]
		bgraFromRGBA(dstRow, srcRow)
	}

	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: ov.image, Before: driver.StateShaderResource, After: driver.StateCopyDst}})
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:      ov.upload,
		RowPitch: ov.rowPitch,
		Img:      ov.image,
		Size:     driver.Dim2D{Width: ov.panelW, Height: ov.panelH},
	})
	cb.Transition([]driver.Transition{{Img: ov.image, Before: driver.StateCopyDst, After: driver.StateShaderResource}})
	cb.EndBlit()
	return nil
}

// RenderAndSubmit records Render into a throwaway command buffer and
// submits it to gpu's direct queue immediately, for callers that
// refresh the overlay on their own cadence (e.g. a periodic sample of
// the pipeline's running stats) rather than from inside the tick loop
// that owns GpuContext's shared command buffer.
func (ov *Overlay) RenderAndSubmit(gpu driver.GPU, stats Stats) error {
	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		return fmt.Errorf("overlay: new command buffer: %w", err)
	}
	defer cb.Destroy()

	if err := cb.Begin(); err != nil {
		return fmt.Errorf("overlay: begin: %w", err)
	}
	if err := ov.Render(cb, stats); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return fmt.Errorf("overlay: end: %w", err)
	}

	ch := make(chan error, 1)
	gpu.Commit([]driver.CmdBuffer{cb}, ch)
	if err := <-ch; err != nil {
		return fmt.Errorf("overlay: commit: %w", err)
	}
	return nil
}

// bgraFromRGBA swaps R and B in place while copying a row, since the
// panel is drawn in Go's image.RGBA order but the GPU texture and back
// buffer are BGRA8un.
func bgraFromRGBA(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = src[i+3]
	}
}

// Destroy releases the overlay's GPU resources.
func (ov *Overlay) Destroy() {
	if ov.upload != nil {
		ov.upload.Destroy()
	}
	if ov.image != nil {
		ov.image.Destroy()
	}
}
