// Package gpuctx owns the compute device used by the rest of the
// pipeline: a driver.GPU, a single reusable command buffer, and the
// host-blocking submit/wait discipline every stage relies on between
// ticks. It is the hierarchical owner of all compute-side GPU state;
// every other component borrows a *GpuContext for the lifetime of a
// single dispatch or copy.
package gpuctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/osfg-go/framegen/driver"
)

// ErrFatal wraps an unrecoverable GPU error (device removal, driver
// bug). Callers should treat receiving it the same way spec's
// Initialization/PresentDeviceLost kinds are treated: stop and report.
var ErrFatal = errors.New("gpuctx: fatal GPU error")

// GpuContext owns a driver.GPU and its single direct-queue command
// buffer, cycling it through the Begin/record/submit/wait discipline
// the pipeline uses between stages.
type GpuContext struct {
	gpu driver.GPU
	cb  driver.CmdBuffer
	log *slog.Logger

	recording bool
	submits   int64
}

// New opens drv on the given adapter and wraps it in a GpuContext with
// a fresh command buffer ready for recording.
func New(drv driver.Driver, adapter int, log *slog.Logger) (*GpuContext, error) {
	if log == nil {
		log = slog.Default()
	}
	gpu, err := drv.Open(adapter)
	if err != nil {
		return nil, fmt.Errorf("gpuctx: open %s: %w", drv.Name(), err)
	}
	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		return nil, fmt.Errorf("gpuctx: new command buffer: %w", err)
	}
	gc := &GpuContext{gpu: gpu, cb: cb, log: log.With("component", "gpuctx", "driver", drv.Name())}
	if err := gc.ResetRecording(); err != nil {
		return nil, err
	}
	return gc, nil
}

// GPU returns the underlying driver.GPU, for components that need to
// create their own resources (images, buffers, pipelines).
func (gc *GpuContext) GPU() driver.GPU { return gc.gpu }

// CmdBuffer returns the currently open command buffer for recording.
// It panics if called outside a reset-to-submit cycle, since every
// caller in this pipeline records into an already-reset buffer.
func (gc *GpuContext) CmdBuffer() driver.CmdBuffer {
	if !gc.recording {
		panic("gpuctx: CmdBuffer called without an open recording")
	}
	return gc.cb
}

// ResetRecording resets the command buffer for a new recording. It
// must only be called once the previous submission (if any) has
// completed on the GPU, which SubmitAndWait/Flush guarantee.
func (gc *GpuContext) ResetRecording() error {
	if err := gc.cb.Reset(); err != nil {
		return fmt.Errorf("%w: reset command buffer: %v", ErrFatal, err)
	}
	if err := gc.cb.Begin(); err != nil {
		return fmt.Errorf("%w: begin command buffer: %v", ErrFatal, err)
	}
	gc.recording = true
	return nil
}

// SubmitAndWait closes the command buffer, submits it to the GPU's
// single direct queue, and blocks the host until it has completed.
// On success the command buffer is left closed; callers must call
// ResetRecording before recording into it again.
func (gc *GpuContext) SubmitAndWait(ctx context.Context) error {
	if err := gc.cb.End(); err != nil {
		return fmt.Errorf("%w: end command buffer: %v", ErrFatal, err)
	}
	gc.recording = false

	ch := make(chan error, 1)
	gc.gpu.Commit([]driver.CmdBuffer{gc.cb}, ch)

	select {
	case err := <-ch:
		gc.submits++
		if err != nil {
			return fmt.Errorf("%w: commit: %v", ErrFatal, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush performs a submit+wait with no new recording, draining any
// work already recorded into the open command buffer. It is used at
// shutdown to make sure every stage's last submission has completed
// before tearing down GPU resources.
func (gc *GpuContext) Flush(ctx context.Context) error {
	if !gc.recording {
		return nil
	}
	return gc.SubmitAndWait(ctx)
}

// Submits returns the number of completed submit_and_wait cycles,
// for diagnostics.
func (gc *GpuContext) Submits() int64 { return gc.submits }

// Close releases the command buffer and underlying GPU.
func (gc *GpuContext) Close() {
	if gc.cb != nil {
		gc.cb.Destroy()
		gc.cb = nil
	}
	gc.gpu = nil
}
