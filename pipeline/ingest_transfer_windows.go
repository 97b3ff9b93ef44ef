//go:build windows

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/interop"
	"github.com/osfg-go/framegen/transfer"
)

// rowPitchAlignment matches the D3D12 texture-data pitch alignment the
// source-side upload buffer below must honor, the same constant
// transfer and interop each keep their own copy of.
const rowPitchAlignment = 256

func alignUp(v, align int64) int64 { return (v + align - 1) &^ (align - 1) }

// TransferIngester is dual-GPU mode's counterpart to CaptureIngester.
// Where CaptureIngester reads the capture texture directly through the
// capture device's own D3D11 context regardless of which adapter it
// lives on, TransferIngester first lands the captured frame on the
// capture adapter's own D3D12 device (GCSource), then drives
// transfer.Transfer's source/dest recording pair to move it onto the
// compute device, so CrossAdapterTransfer is the one actually moving
// bytes between adapters rather than a capability probe run once at
// startup.
type TransferIngester struct {
	Cap      capture.Capturer
	GCSource *gpuctx.GpuContext
	Transfer *transfer.Transfer
	Interop  *interop.Interop
	log      *slog.Logger

	srcImage  driver.Image
	srcUpload driver.Buffer
	rowPitch  int64
}

// NewTransferIngester allocates the bridge resources — an upload buffer
// and a plain image on the source adapter, both sized to width x height
// — that ferry a captured D3D11 frame onto gcSource's D3D12 device
// before tr.RecordSource reads it.
func NewTransferIngester(cap capture.Capturer, gcSource *gpuctx.GpuContext, tr *transfer.Transfer, ip *interop.Interop, width, height int, log *slog.Logger) (*TransferIngester, error) {
	if log == nil {
		log = slog.Default()
	}
	rowPitch := alignUp(int64(width*4), rowPitchAlignment)
	upload, err := gcSource.GPU().NewBuffer(rowPitch*int64(height), true, driver.UCopySrc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: transfer ingester upload buffer: %w", err)
	}
	img, err := gcSource.GPU().NewImage(driver.BGRA8un, driver.Dim2D{Width: width, Height: height}, driver.UCopyDst)
	if err != nil {
		upload.Destroy()
		return nil, fmt.Errorf("pipeline: transfer ingester source image: %w", err)
	}
	return &TransferIngester{
		Cap:       cap,
		GCSource:  gcSource,
		Transfer:  tr,
		Interop:   ip,
		log:       log.With("component", "pipeline", "ingester", "transfer"),
		srcImage:  img,
		srcUpload: upload,
		rowPitch:  rowPitch,
	}, nil
}

// Ingest acquires a frame, stages its pixels onto the source adapter's
// bridge image via the same Map/row-copy step CaptureIngester's staged
// path uses, submits and host-waits that copy on GCSource, then drives
// Transfer.RecordSource/RecordDest/Advance and feeds the landed frame
// into Interop.IngestImage on cb. cb belongs to the compute device;
// the pipeline's tick submits it once Ingest returns.
func (ti *TransferIngester) Ingest(cb driver.CmdBuffer, timeoutMs int) error {
	frame, err := ti.Cap.Acquire(timeoutMs)
	if err != nil {
		return err
	}
	defer ti.Cap.Release()

	pixels, srcStride, err := interop.ReadCaptureFrame(ti.Cap, frame, frame.Width, frame.Height)
	if err != nil {
		return &interop.IngestFailed{Err: err}
	}

	dst := ti.srcUpload.Bytes()
	if dst == nil {
		return &interop.IngestFailed{Err: fmt.Errorf("pipeline: transfer ingester upload buffer not host visible")}
	}
	rowBytes := frame.Width * 4
	for y := 0; y < frame.Height; y++ {
		srcRow := pixels[y*srcStride : y*srcStride+rowBytes]
		dstRow := dst[int64(y)*ti.rowPitch : int64(y)*ti.rowPitch+int64(rowBytes)]
		copy(dstRow, srcRow)
	}

	size := driver.Dim2D{Width: frame.Width, Height: frame.Height}
	srcCB := ti.GCSource.CmdBuffer()
	srcCB.BeginBlit()
	srcCB.Transition([]driver.Transition{{Img: ti.srcImage, Before: driver.StateCommon, After: driver.StateCopyDst}})
	srcCB.CopyBufToImg(&driver.BufImgCopy{Buf: ti.srcUpload, RowPitch: ti.rowPitch, Img: ti.srcImage, Size: size})
	srcCB.Transition([]driver.Transition{{Img: ti.srcImage, Before: driver.StateCopyDst, After: driver.StateCommon}})
	srcCB.EndBlit()

	if err := ti.Transfer.RecordSource(srcCB, ti.srcImage); err != nil {
		return fmt.Errorf("pipeline: record transfer source: %w", err)
	}
	if err := ti.GCSource.SubmitAndWait(context.Background()); err != nil {
		return fmt.Errorf("pipeline: submit transfer source: %w", err)
	}
	if err := ti.GCSource.ResetRecording(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if err := ti.Transfer.RecordDest(cb); err != nil {
		return fmt.Errorf("pipeline: record transfer dest: %w", err)
	}
	ti.Transfer.Advance()

	return ti.Interop.IngestImage(cb, ti.Transfer.Current())
}

// CaptureStats returns the underlying capture device's rolling acquire
// statistics, the same values CaptureIngester reports.
func (ti *TransferIngester) CaptureStats() capture.Stats { return ti.Cap.Stats() }

// Close releases the bridge resources Ingest allocated. Cap, GCSource,
// Transfer, and Interop remain the caller's to close.
func (ti *TransferIngester) Close() {
	if ti.srcImage != nil {
		ti.srcImage.Destroy()
	}
	if ti.srcUpload != nil {
		ti.srcUpload.Destroy()
	}
}
