// Package transfer moves a captured/composited frame from the capture
// device's GPU to the compute device's GPU when the two are different
// adapters (spec.md §4.7, dual-GPU only). It probes which of the two
// cross-adapter methods the pair of adapters supports at construction
// time and exposes a uniform source/destination recording pair either
// way, plus a triple-buffered Current/Previous destination-side view
// for OpticalFlow.
package transfer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/osfg-go/framegen/driver"
)

// Method names the cross-adapter transfer strategy selected for a
// given source/destination GPU pair.
type Method int

const (
	// MethodSharedHeap copies through a bridge image created on the
	// source adapter, which the destination adapter's command buffer
	// copies from directly. No cross-adapter placed heap or shared
	// fence is allocated; ordering relies on the caller host-waiting
	// the source submission before RecordDest. It requires both
	// adapters to report driver.Limits.CrossAdapterRowMajor.
	MethodSharedHeap Method = iota
	// MethodStagedCPU copies through a readback buffer on the source
	// adapter and an upload buffer on the destination adapter, with an
	// explicit host-side memcpy between them.
	MethodStagedCPU
)

func (m Method) String() string {
	switch m {
	case MethodSharedHeap:
		return "SharedHeap"
	case MethodStagedCPU:
		return "StagedCPU"
	default:
		return "Unknown"
	}
}

// rowPitchAlignment matches the D3D12 texture-data pitch alignment the
// StagedCPU path's readback/upload buffers must honor.
const rowPitchAlignment = 256

func alignUp(v, align int64) int64 { return (v + align - 1) &^ (align - 1) }

// Config selects the transferred frame's geometry.
type Config struct {
	Width, Height int
}

// Transfer owns the cross-adapter resources for one source/destination
// GPU pair: a triple-buffered destination-side image set (so
// OpticalFlow can read Current/Previous while the next transfer writes
// the third slot), plus whichever method-specific bridge resources
// MethodSharedHeap or MethodStagedCPU requires.
type Transfer struct {
	source, dest driver.GPU
	cfg          Config
	log          *slog.Logger
	method       Method

	images  [3]driver.Image
	written [3]bool
	// slots holds the physical indices currently playing the
	// (write-target, Current, Previous) roles, in that order. Advance
	// rotates it right by one: the slot just written becomes Current,
	// the old Current becomes Previous, and the old Previous — whose
	// data no consumer needs anymore — becomes the next write target.
	slots [3]int

	bridge driver.Image // MethodSharedHeap only

	readback driver.Buffer // MethodStagedCPU only, source-side
	upload   driver.Buffer // MethodStagedCPU only, destination-side
	rowPitch int64

	transfers int64
}

// New probes source's and dest's driver.Limits for cross-adapter
// row-major texture support and builds whichever of the two transfer
// paths that probe selects.
func New(source, dest driver.GPU, cfg Config, log *slog.Logger) (*Transfer, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("transfer: invalid geometry %dx%d", cfg.Width, cfg.Height)
	}

	method := MethodStagedCPU
	if source.Limits().CrossAdapterRowMajor && dest.Limits().CrossAdapterRowMajor {
		method = MethodSharedHeap
	}

	t := &Transfer{
		source: source,
		dest:   dest,
		cfg:    cfg,
		log:    log.With("component", "transfer", "method", method.String()),
		method: method,
		slots:  [3]int{2, 0, 1},
	}

	size := driver.Dim2D{Width: cfg.Width, Height: cfg.Height}
	for i := range t.images {
		img, err := dest.NewImage(driver.BGRA8un, size, driver.UShaderRead|driver.UCopyDst)
		if err != nil {
			t.destroyImages()
			return nil, fmt.Errorf("transfer: new destination image %d: %w", i, err)
		}
		t.images[i] = img
	}

	switch method {
	case MethodSharedHeap:
		bridge, err := source.NewImage(driver.BGRA8un, size, driver.UCopySrc|driver.UCopyDst)
		if err != nil {
			t.destroyImages()
			return nil, fmt.Errorf("transfer: new shared-heap bridge image: %w", err)
		}
		t.bridge = bridge
	case MethodStagedCPU:
		t.rowPitch = alignUp(int64(cfg.Width*4), rowPitchAlignment)
		size64 := t.rowPitch * int64(cfg.Height)
		rb, err := source.NewBuffer(size64, true, driver.UCopyDst)
		if err != nil {
			t.destroyImages()
			return nil, fmt.Errorf("transfer: new readback buffer: %w", err)
		}
		up, err := dest.NewBuffer(size64, true, driver.UCopySrc)
		if err != nil {
			rb.Destroy()
			t.destroyImages()
			return nil, fmt.Errorf("transfer: new upload buffer: %w", err)
		}
		t.readback, t.upload = rb, up
	}

	return t, nil
}

// Method reports which cross-adapter strategy was selected.
func (t *Transfer) Method() Method { return t.method }

// TransferCount returns the number of completed transfer cycles.
func (t *Transfer) TransferCount() int64 { return t.transfers }

// Current returns the destination-side image holding the most recently
// completed transfer once Advance has rotated it out of the write slot.
func (t *Transfer) Current() driver.Image { return t.images[t.slots[1]] }

// Previous returns the destination-side image holding the transfer
// before Current, for OpticalFlow's motion estimation pair.
func (t *Transfer) Previous() driver.Image { return t.images[t.slots[2]] }

func (t *Transfer) writeTarget() driver.Image { return t.images[t.slots[0]] }

// Advance rotates the triple buffer: the slot just filled by the most
// recent RecordDest becomes Current, the old Current becomes Previous,
// and the old Previous becomes the next write target.
func (t *Transfer) Advance() {
	t.slots = [3]int{t.slots[2], t.slots[0], t.slots[1]}
}

// RecordSource records, on cb (the source adapter's command buffer),
// the source-side half of a transfer cycle for srcTex, dispatching to
// whichever method was selected at construction.
func (t *Transfer) RecordSource(cb driver.CmdBuffer, srcTex driver.Image) error {
	switch t.method {
	case MethodSharedHeap:
		return t.sharedHeapSource(cb, srcTex)
	case MethodStagedCPU:
		return t.stagedCPUSource(cb, srcTex)
	default:
		return fmt.Errorf("transfer: unknown method %v", t.method)
	}
}

// RecordDest records, on cb (the destination adapter's command
// buffer), the destination-side half of a transfer cycle, writing into
// the current write-target slot. The caller must have already
// submitted and host-waited the command buffer RecordSource recorded
// into (spec.md §4.7's source-fence host-wait) before calling this.
// For MethodStagedCPU this also performs the host-side memcpy from the
// readback buffer into the upload buffer.
func (t *Transfer) RecordDest(cb driver.CmdBuffer) error {
	switch t.method {
	case MethodSharedHeap:
		return t.sharedHeapDest(cb)
	case MethodStagedCPU:
		if err := t.copyHostBuffers(); err != nil {
			return err
		}
		return t.stagedCPUDest(cb)
	default:
		return fmt.Errorf("transfer: unknown method %v", t.method)
	}
}

func (t *Transfer) sharedHeapSource(cb driver.CmdBuffer, srcTex driver.Image) error {
	size := driver.Dim2D{Width: t.cfg.Width, Height: t.cfg.Height}
	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: t.bridge, Before: driver.StateCommon, After: driver.StateCopyDst}})
	cb.CopyImage(&driver.ImageCopy{From: srcTex, To: t.bridge, Size: size})
	cb.Transition([]driver.Transition{{Img: t.bridge, Before: driver.StateCopyDst, After: driver.StateCommon}})
	cb.EndBlit()
	return nil
}

func (t *Transfer) sharedHeapDest(cb driver.CmdBuffer) error {
	size := driver.Dim2D{Width: t.cfg.Width, Height: t.cfg.Height}
	dst := t.writeTarget()
	before := driver.StateCommon
	if t.written[t.slots[0]] {
		before = driver.StateShaderResource
	}
	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: dst, Before: before, After: driver.StateCopyDst}})
	cb.CopyImage(&driver.ImageCopy{From: t.bridge, To: dst, Size: size})
	cb.Transition([]driver.Transition{{Img: dst, Before: driver.StateCopyDst, After: driver.StateShaderResource}})
	cb.EndBlit()
	t.written[t.slots[0]] = true
	t.transfers++
	return nil
}

func (t *Transfer) stagedCPUSource(cb driver.CmdBuffer, srcTex driver.Image) error {
	size := driver.Dim2D{Width: t.cfg.Width, Height: t.cfg.Height}
	cb.BeginBlit()
	cb.CopyImgToBuf(&driver.BufImgCopy{Buf: t.readback, RowPitch: t.rowPitch, Img: srcTex, Size: size})
	cb.EndBlit()
	return nil
}

func (t *Transfer) copyHostBuffers() error {
	rb, up := t.readback.Bytes(), t.upload.Bytes()
	if rb == nil || up == nil {
		return errors.New("transfer: readback/upload buffer not host visible")
	}
	copy(up, rb)
	return nil
}

func (t *Transfer) stagedCPUDest(cb driver.CmdBuffer) error {
	size := driver.Dim2D{Width: t.cfg.Width, Height: t.cfg.Height}
	dst := t.writeTarget()
	before := driver.StateCommon
	if t.written[t.slots[0]] {
		before = driver.StateShaderResource
	}
	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: dst, Before: before, After: driver.StateCopyDst}})
	cb.CopyBufToImg(&driver.BufImgCopy{Buf: t.upload, RowPitch: t.rowPitch, Img: dst, Size: size})
	cb.Transition([]driver.Transition{{Img: dst, Before: driver.StateCopyDst, After: driver.StateShaderResource}})
	cb.EndBlit()
	t.written[t.slots[0]] = true
	t.transfers++
	return nil
}

func (t *Transfer) destroyImages() {
	for _, img := range t.images {
		if img != nil {
			img.Destroy()
		}
	}
}

// Destroy releases every resource this Transfer owns.
func (t *Transfer) Destroy() {
	t.destroyImages()
	if t.bridge != nil {
		t.bridge.Destroy()
	}
	if t.readback != nil {
		t.readback.Destroy()
	}
	if t.upload != nil {
		t.upload.Destroy()
	}
}
