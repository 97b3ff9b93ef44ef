// Package soft implements driver.Driver entirely in Go process memory.
// It exists so the block-matching and bilinear-warp algorithms, and
// the pipeline orchestrator built on top of them, can be exercised by
// tests without a GPU or a Windows host: recorded command-buffer ops
// execute in process memory when committed, instead of being
// submitted to real hardware.
//
// It mirrors the structure of a hardware backend (a command buffer
// that records ops and replays them on Commit) so the two backends
// stay easy to compare; resources are plain Go values with no
// resource table.
package soft

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/osfg-go/framegen/driver"
)

// Name is the driver name soft.Driver registers under.
const Name = "soft"

func init() {
	driver.Register(&Driver{})
}

// Driver is the soft.Driver implementation of driver.Driver.
// Open always succeeds; the "adapter" index is ignored, since the
// in-memory backend has exactly one device.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Open(adapter int) (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		d.gpu = newGPU()
	}
	return d.gpu, nil
}

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpu = nil
}

// GPU is the in-memory driver.GPU implementation. Resources it
// creates are owned by their Go references; there is no separate
// resource table to garbage collect, since Destroy on every concrete
// type here is a no-op.
type GPU struct {
	nextID atomic.Uint64
}

func newGPU() *GPU {
	g := &GPU{}
	g.nextID.Store(1)
	return g
}

func (g *GPU) id() uint64 { return g.nextID.Add(1) }

func (g *GPU) Driver() driver.Driver { return softDriverSingleton }

var softDriverSingleton = &Driver{}

// ErrUnsupportedShader is returned by NewShaderCode when the named
// shader is not one soft.GPU knows how to execute. Shader "names" in
// this backend are plain strings (see ShaderCode), not bytecode.
var ErrUnsupportedShader = errors.New("soft: unsupported shader")

// Limits reports generous software limits; nothing in this backend is
// hardware-constrained. CrossAdapterRowMajor is always true, since a
// process-memory "adapter" has no row-major restriction to violate.
func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxImage2D:           16384,
		MaxDispatch:          [3]int{65535, 65535, 65535},
		CrossAdapterRowMajor: true,
	}
}

// Commit executes every recorded command buffer synchronously, in
// order, on the calling goroutine, then reports the result on ch.
func (g *GPU) Commit(cbs []driver.CmdBuffer, ch chan<- error) {
	var err error
	for _, cb := range cbs {
		scb, ok := cb.(*CmdBuffer)
		if !ok {
			err = errors.New("soft: foreign command buffer")
			break
		}
		if err = scb.replay(g); err != nil {
			break
		}
	}
	if ch != nil {
		ch <- err
	}
}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &CmdBuffer{}, nil
}
