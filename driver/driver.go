// Package driver defines a set of interfaces encompassing the GPU
// functionality needed by the frame-generation pipeline: device/queue
// ownership, command recording, resource-state transitions, and
// presentation. It is designed so that platform-specific backends
// (Windows D3D12, or an in-process software device for tests) can be
// implemented without leaking their mechanics into the pipeline stages.
package driver

import (
	"errors"
	"log/slog"
	"sync"
)

// Driver is the interface that provides methods for loading and
// unloading an underlying GPU backend.
type Driver interface {
	// Open initializes the driver against the given adapter index
	// (0 is the first enumerated adapter). If it succeeds, further
	// calls with the same receiver have no effect and must return
	// the same GPU instance.
	// Callers should assume that Open is not safe for parallel
	// execution.
	Open(adapter int) (GPU, error)

	// Name returns the name of the driver.
	// It must not cause the driver to be opened.
	Name() string

	// Close deinitializes the driver.
	// Closing a driver that is not open has no effect.
	// Callers should assume that Close is not safe for parallel
	// execution.
	Close()
}

// ErrNotInstalled means that a platform-specific library required
// for the driver to work is not present in the system.
var ErrNotInstalled = errors.New("driver: missing required library")

// ErrNoDevice means that no suitable device could be found.
var ErrNoDevice = errors.New("driver: no suitable device found")

// ErrNoHostMemory means that host memory could not be allocated.
var ErrNoHostMemory = errors.New("driver: out of host memory")

// ErrNoDeviceMemory means that device memory could not be allocated.
var ErrNoDeviceMemory = errors.New("driver: out of device memory")

// ErrFatal means that the driver is in an unrecoverable state.
// Upon encountering such an error, the application must destroy
// everything it created using the driver's GPU and then call Close.
// It may call Open again to reinitialize the driver for further use.
// This is the Go-level counterpart of spec's PresentDeviceLost and
// Initialization error kinds.
var ErrFatal = errors.New("driver: fatal error")

// Drivers returns the registered Drivers.
// Client code imports specific driver packages, which register
// themselves from an init function. Drivers that do not register
// themselves on init are not considered for selection.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver.
// Driver implementations are expected to call Register exactly once,
// from an init function. If a driver with the same name has already
// been registered, it is replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			slog.Warn("driver replaced", "name", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	slog.Debug("driver registered", "name", drv.Name())
}

var (
	mu      sync.Mutex
	drivers []Driver = make([]Driver, 0, 2)
)
