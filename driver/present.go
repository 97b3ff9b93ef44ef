package driver

import (
	"errors"

	"github.com/osfg-go/framegen/wsi"
)

// ErrCannotPresent means that the driver and/or device do not
// support presentation.
var ErrCannotPresent = errors.New("driver: presentation not supported")

// ErrWindow represents an error related to a specific window.
// This error usually indicates that a window misconfiguration is
// preventing correct operation; for instance, the driver may
// require a visible window to create a swapchain.
var ErrWindow = errors.New("driver: window-related error")

// ErrSwapchain represents an error related to a specific swapchain.
// This error usually indicates that changes to the window or
// compositor made the swapchain unusable (spec's PresentDeviceLost
// on flip, or the non-fatal "recreate and retry" case DXGI signals
// via DXGI_ERROR_DEVICE_RESET).
var ErrSwapchain = errors.New("driver: swapchain-related error")

// ErrNoBackbuffer means that all available back buffers are
// currently in flight (awaiting their completion fence).
var ErrNoBackbuffer = errors.New("driver: all backbuffers in use")

// Presenter is the interface a GPU may implement to enable
// presentation to a wsi.Window.
type Presenter interface {
	// NewSwapchain creates a new flip-model swapchain with the
	// given number of back buffers (clamped to [2,3]).
	// Only one swapchain can be associated with a given
	// wsi.Window at a time.
	NewSwapchain(win wsi.Window, bufferCount int, pf PixelFmt) (Swapchain, error)
}

// Swapchain is the interface that defines an n-buffered flip-model
// swapchain for presentation. Usage: call Next to obtain the index
// of a writable back-buffer image, transition it to StateCopyDst,
// copy into it, transition it to StatePresent, commit the command
// buffer that recorded those transitions, then call Present.
type Swapchain interface {
	Destroyer

	// Images returns the back-buffer images that comprise the
	// swapchain. This slice is stable as long as Destroy and
	// Recreate are not called. Back buffers are in StateCommon
	// when created/recreated.
	Images() []Image

	// Next returns the index of the next writable back buffer.
	// It blocks the host until that buffer's previous
	// presentation has completed on the GPU, if necessary.
	// ErrNoBackbuffer is returned if every back buffer is
	// simultaneously in flight (should not happen given the
	// orchestrator's per-tick synchronous Commit/wait pattern).
	Next() (int, error)

	// Present presents the back buffer identified by index.
	// Before calling this method, that image must have been
	// transitioned to StatePresent by a command buffer that has
	// already been committed (and, per the pipeline's per-step
	// fence-wait discipline, completed).
	Present(index int, syncInterval int) error

	// Recreate recreates the swapchain in response to an
	// ErrSwapchain error, e.g. after a window resize.
	Recreate() error

	// Format returns the back buffers' PixelFmt.
	Format() PixelFmt
}
