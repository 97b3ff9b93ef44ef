// Package interop owns the two destination textures the compute device
// uses as "Current" and "Previous" for OpticalFlow and Interpolation, and
// the operation that refreshes one of them with a newly captured frame
// (spec.md §4.3). The two textures form a ring of exactly two physical
// slots: Current is always the slot most recently ingested into, and
// Ingest always writes into that same slot in place — Rotate is the only
// operation that changes which physical slot plays which role, toggling
// a single index rather than moving data.
package interop

import (
	"fmt"
	"log/slog"

	"github.com/osfg-go/framegen/driver"
)

// Config describes the fixed geometry of both destination textures.
type Config struct {
	Width, Height int
}

// rowPitchAlignment is the row-pitch alignment required of buffer-to-
// image copies on the D3D12 backend (D3D12_TEXTURE_DATA_PITCH_ALIGNMENT).
const rowPitchAlignment = 256

func alignUp(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}

// IngestFailed wraps a non-recoverable failure from Ingest/IngestImage.
// Per spec.md §4.3, a map failure on the staged path is fatal only for
// the frame being ingested; the caller should skip this tick and retry
// on the next one rather than tearing down the Interop instance.
type IngestFailed struct {
	Err error
}

func (e *IngestFailed) Error() string { return fmt.Sprintf("interop: ingest failed: %v", e.Err) }
func (e *IngestFailed) Unwrap() error { return e.Err }

// Interop owns the two destination textures and the persistently-mapped
// upload buffer used by the staged ingest path.
type Interop struct {
	gpu driver.GPU
	cfg Config
	log *slog.Logger

	images  [2]driver.Image
	written [2]bool // true once a slot has received its first ingest

	curr int

	upload   driver.Buffer
	rowPitch int64

	ingestedCount int64
}

// New creates the two destination textures (BGRA8, resting in
// StateShaderResource between ingests) and the upload buffer sized to
// one frame with the D3D12 row-pitch alignment.
func New(gpu driver.GPU, cfg Config, log *slog.Logger) (*Interop, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("interop: invalid geometry %dx%d", cfg.Width, cfg.Height)
	}

	var images [2]driver.Image
	for i := range images {
		img, err := gpu.NewImage(driver.BGRA8un, driver.Dim2D{Width: cfg.Width, Height: cfg.Height}, driver.UShaderRead|driver.UCopyDst)
		if err != nil {
			for j := 0; j < i; j++ {
				images[j].Destroy()
			}
			return nil, fmt.Errorf("interop: destination texture %d: %w", i, err)
		}
		images[i] = img
	}

	rowPitch := alignUp(int64(cfg.Width*4), rowPitchAlignment)
	upload, err := gpu.NewBuffer(rowPitch*int64(cfg.Height), true, driver.UCopySrc)
	if err != nil {
		for _, img := range images {
			img.Destroy()
		}
		return nil, fmt.Errorf("interop: upload buffer: %w", err)
	}

	return &Interop{
		gpu:      gpu,
		cfg:      cfg,
		log:      log.With("component", "interop"),
		images:   images,
		upload:   upload,
		rowPitch: rowPitch,
	}, nil
}

// Current returns the destination texture most recently ingested into.
func (ip *Interop) Current() driver.Image { return ip.images[ip.curr] }

// Previous returns the other destination texture.
func (ip *Interop) Previous() driver.Image { return ip.images[1-ip.curr] }

// IngestedCount returns the running total of successful Ingest/IngestImage calls.
func (ip *Interop) IngestedCount() int64 { return ip.ingestedCount }

// Rotate toggles the write-slot index: the slot that was Current becomes
// Previous, and the slot that was Previous — now the oldest data held by
// either slot — becomes the next ingest target (spec.md §4.3).
func (ip *Interop) Rotate() {
	ip.curr = 1 - ip.curr
}

// Ingest takes the staged path: pixels is a CPU-side BGRA8 buffer already
// read back from a source texture on a different device (e.g. via
// capture.Capturer's staging texture and a Map/Unmap on its context).
// It copies pixels row by row into the upload buffer at the aligned row
// pitch, then records a GPU-side copy from the upload buffer into the
// current write slot, transitioning it out of and back into
// StateShaderResource (spec.md §4.3 step 1).
func (ip *Interop) Ingest(cb driver.CmdBuffer, pixels []byte, srcStride int) error {
	if srcStride <= 0 {
		return &IngestFailed{Err: fmt.Errorf("invalid source stride %d", srcStride)}
	}
	wantLen := srcStride * ip.cfg.Height
	if len(pixels) < wantLen {
		return &IngestFailed{Err: fmt.Errorf("source buffer too small: have %d bytes, want %d", len(pixels), wantLen)}
	}

	dst := ip.upload.Bytes()
	if dst == nil {
		return &IngestFailed{Err: fmt.Errorf("upload buffer is not host visible")}
	}
	rowBytes := ip.cfg.Width * 4
	for y := 0; y < ip.cfg.Height; y++ {
		srcRow := pixels[y*srcStride : y*srcStride+rowBytes]
		dstRow := dst[int64(y)*ip.rowPitch : int64(y)*ip.rowPitch+int64(rowBytes)]
		copy(dstRow, srcRow)
	}

	return ip.recordUploadCopy(cb)
}

// IngestImage takes the fast path: src is already a driver.Image on the
// same compute device (the abstraction's stand-in for "a wrapped
// resource identifying the write-slot to the capture-side API" — with a
// single driver.GPU per compute device, no explicit wrap/release step is
// needed here, since CmdBuffer.CopyImage already sequences through the
// one direct queue). It records a direct image-to-image copy into the
// current write slot (spec.md §4.3 step 2).
func (ip *Interop) IngestImage(cb driver.CmdBuffer, src driver.Image) error {
	dst := ip.images[ip.curr]
	cb.BeginBlit()
	if ip.written[ip.curr] {
		cb.Transition([]driver.Transition{{Img: dst, Before: driver.StateShaderResource, After: driver.StateCopyDst}})
	}
	cb.CopyImage(&driver.ImageCopy{From: src, To: dst, Size: driver.Dim2D{Width: ip.cfg.Width, Height: ip.cfg.Height}})
	cb.Transition([]driver.Transition{{Img: dst, Before: driver.StateCopyDst, After: driver.StateShaderResource}})
	cb.EndBlit()
	ip.written[ip.curr] = true
	ip.ingestedCount++
	return nil
}

func (ip *Interop) recordUploadCopy(cb driver.CmdBuffer) error {
	dst := ip.images[ip.curr]
	cb.BeginBlit()
	if ip.written[ip.curr] {
		cb.Transition([]driver.Transition{{Img: dst, Before: driver.StateShaderResource, After: driver.StateCopyDst}})
	}
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:      ip.upload,
		RowPitch: ip.rowPitch,
		Img:      dst,
		Size:     driver.Dim2D{Width: ip.cfg.Width, Height: ip.cfg.Height},
	})
	cb.Transition([]driver.Transition{{Img: dst, Before: driver.StateCopyDst, After: driver.StateShaderResource}})
	cb.EndBlit()
	ip.written[ip.curr] = true
	ip.ingestedCount++
	return nil
}

// Destroy releases Interop's owned GPU resources.
func (ip *Interop) Destroy() {
	if ip.upload != nil {
		ip.upload.Destroy()
	}
	for _, img := range ip.images {
		if img != nil {
			img.Destroy()
		}
	}
}
