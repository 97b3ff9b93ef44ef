// Package capture acquires desktop frames from a chosen display output on
// a capture-side 3D-API device, separate from the compute device OpticalFlow
// and Interpolation run on (spec.md §4.2). The platform implementation is
// selected at init time, following the same func-pointer dispatch pattern
// wsi uses to pick between its Win32 backend and a no-op stub.
package capture

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimedOut is returned by Acquire when no new frame became available
// within the requested timeout. It is ordinary flow control, not a fatal
// error: the caller should simply try again on its next tick.
var ErrTimedOut = errors.New("capture: timed out waiting for frame")

// ErrAccessLost is returned by Acquire when the duplication session has
// been invalidated (display mode change, UAC secure-desktop switch,
// another process taking over duplication). The caller must Close and
// reinitialize the Capturer; the frame cannot be recovered.
var ErrAccessLost = errors.New("capture: access to duplication session lost")

// FailureKind classifies a non-recoverable capture failure reported by
// Acquire as a *FailedError.
type FailureKind int

const (
	// FailedUnknown covers failures that don't fit a more specific kind.
	FailedUnknown FailureKind = iota
	// FailedDeviceRemoved means the capture-side GPU device was removed
	// or reset (driver crash, external GPU unplugged, TDR).
	FailedDeviceRemoved
	// FailedMapFailed means reading back a staging resource failed.
	FailedMapFailed
)

func (k FailureKind) String() string {
	switch k {
	case FailedDeviceRemoved:
		return "device removed"
	case FailedMapFailed:
		return "map failed"
	default:
		return "unknown"
	}
}

// FailedError wraps a non-recoverable Acquire failure with its kind.
type FailedError struct {
	Kind FailureKind
	Err  error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("capture: failed (%s): %v", e.Kind, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Frame is a captured desktop frame. Texture is an opaque handle to the
// native texture object (an ID3D11Texture2D* on Windows) that Interop's
// ingest operation copies from, either directly (fast path, same device)
// or via a staging readback (staged path, different device).
type Frame struct {
	Texture uintptr
	Width   int
	Height  int
	// PointerX, PointerY, PointerVisible report the desktop cursor's
	// position and visibility at the time of capture, sampled from the
	// duplication frame-info metadata. Consumers that composite a
	// software cursor (this pipeline doesn't; the desktop duplication
	// already includes the hardware cursor in most configurations) can
	// use these as a supplementary signal.
	PointerX, PointerY int
	PointerVisible     bool
	// Rotation is the output's current DXGI_MODE_ROTATION value (0 =
	// identity, 1 = 90, 2 = 180, 3 = 270 degrees), read once from the
	// duplication description when the session is created and copied
	// onto every frame; it is not refreshed per frame. Width and
	// Height already reflect this rotation; Rotation is exposed so a
	// consumer that must reason about the pre-rotation buffer layout
	// (none in this pipeline does today) has the value available.
	Rotation uint32
}

// Stats holds Capturer's rolling acquire statistics (spec.md §4.2).
type Stats struct {
	FramesCaptured int64
	FramesMissed   int64
	MinLatency     time.Duration
	AvgLatency     time.Duration
	MaxLatency     time.Duration
}

const statsAlpha = 0.1

func (s *Stats) recordCapture(d time.Duration) {
	s.FramesCaptured++
	if s.FramesCaptured == 1 {
		s.MinLatency, s.AvgLatency, s.MaxLatency = d, d, d
		return
	}
	if d < s.MinLatency {
		s.MinLatency = d
	}
	if d > s.MaxLatency {
		s.MaxLatency = d
	}
	s.AvgLatency = time.Duration(statsAlpha*float64(d) + (1-statsAlpha)*float64(s.AvgLatency))
}

func (s *Stats) recordMiss() {
	s.FramesMissed++
}

// Capturer acquires frames from a display output. A successful Acquire
// must be matched by a Release before the next Acquire call.
type Capturer interface {
	// Acquire waits up to timeoutMs milliseconds for a new frame. It
	// returns ErrTimedOut if none arrived, ErrAccessLost if the
	// duplication session was invalidated, or a *FailedError for any
	// other non-recoverable failure.
	Acquire(timeoutMs int) (Frame, error)

	// Release must be called exactly once between any two successful
	// Acquire calls, and is a no-op if Acquire has not returned a frame
	// since the last Release.
	Release()

	// Width and Height report the display output's captured
	// dimensions (post-rotation, i.e. what the user sees).
	Width() int
	Height() int

	// Rotation reports the output's current DXGI_MODE_ROTATION value,
	// the same value carried per-frame on Frame.Rotation.
	Rotation() uint32

	// DeviceHandle and ContextHandle expose the capture-side device
	// and immediate context so Interop's staged ingest path can read
	// the captured texture on the device that produced it.
	DeviceHandle() uintptr
	ContextHandle() uintptr

	// Stats returns a snapshot of the rolling acquire statistics.
	Stats() Stats

	// Close releases the duplication session and all capture-side GPU
	// resources.
	Close() error
}

// Config selects the display output and adapter to capture from.
type Config struct {
	// DisplayIndex selects an output attached to the chosen adapter
	// (0 is the primary display in typical configurations).
	DisplayIndex int
	// AdapterIndex names a GPU adapter when more than one is present
	// (relevant to CrossAdapterTransfer's dual-GPU configuration). The
	// Windows implementation does not read it: the capture device is
	// always created on the default hardware adapter, and DisplayIndex
	// counts the outputs of that adapter.
	AdapterIndex int
}

// New creates a Capturer for the given display/adapter selection using
// the platform's real implementation, or an error if none is available
// on this platform.
func New(cfg Config) (Capturer, error) {
	return newCapturer(cfg)
}

var newCapturer func(Config) (Capturer, error)
