//go:build windows

package d3d12

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/osfg-go/framegen/driver"
)

// GPU implements driver.GPU on a single D3D12 device, direct command
// queue, and shared fence. Every Commit call bumps the fence to a new
// target value and blocks the caller until the GPU signals it,
// matching gpuctx's synchronous submit/wait discipline; there is no
// frames-in-flight overlap to manage here, since the pipeline never
// has more than one outstanding submission at a time.
type GPU struct {
	drv *Driver

	device uintptr
	queue  uintptr

	fence      uintptr
	fenceEvent syscall.Handle
	fenceValue atomic.Uint64

	cbvSrvUavIncr uint32
}

func (g *GPU) Driver() driver.Driver { return g.drv }

// Limits reports conservative D3D12 feature-level 11.0 limits.
func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxImage2D:           16384,
		MaxDispatch:          [3]int{65535, 65535, 65535},
		CrossAdapterRowMajor: true,
	}
}

// Commit submits every command buffer's graphics command list to the
// direct queue, in order, signals the shared fence once, and reports
// completion on ch after blocking on that single fence value — since
// ID3D12CommandQueue::ExecuteCommandLists already serializes the
// batch in submission order, one fence wait covers the whole batch.
func (g *GPU) Commit(cbs []driver.CmdBuffer, ch chan<- error) {
	err := g.commit(cbs)
	if ch != nil {
		ch <- err
	}
}

func (g *GPU) commit(cbs []driver.CmdBuffer) error {
	lists := make([]uintptr, 0, len(cbs))
	for _, cb := range cbs {
		d3cb, ok := cb.(*CmdBuffer)
		if !ok {
			return fmt.Errorf("d3d12: foreign command buffer")
		}
		lists = append(lists, d3cb.list)
	}
	if len(lists) == 0 {
		return nil
	}
	syscall.SyscallN(comVtblFn(g.queue, d3d12QueueExecuteCommandLists), g.queue, uintptr(len(lists)), uintptr(unsafe.Pointer(&lists[0])))

	target := g.fenceValue.Add(1)
	if _, err := comCall(g.queue, d3d12QueueSignal, g.fence, uintptr(target)); err != nil {
		return fmt.Errorf("%w: ID3D12CommandQueue::Signal: %v", driver.ErrFatal, err)
	}
	return g.waitFence(target)
}

func (g *GPU) waitFence(target uint64) error {
	completed, _, _ := syscall.SyscallN(comVtblFn(g.fence, d3d12FenceGetCompletedValue), g.fence)
	if uint64(completed) >= target {
		return nil
	}
	if _, err := comCall(g.fence, d3d12FenceSetEventOnComplete, uintptr(target), uintptr(g.fenceEvent)); err != nil {
		return fmt.Errorf("%w: ID3D12Fence::SetEventOnCompletion: %v", driver.ErrFatal, err)
	}
	r, _, _ := procWaitForSingleObj.Call(uintptr(g.fenceEvent), 0xFFFFFFFF)
	if r != 0 {
		return fmt.Errorf("%w: WaitForSingleObject on fence event returned %d", driver.ErrFatal, r)
	}
	return nil
}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	return newCmdBuffer(g)
}
