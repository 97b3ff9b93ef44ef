//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"
)

// comGUID is a COM GUID (128-bit), laid out to match a Win32 GUID struct.
type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// comVtblFn resolves a COM vtable function pointer by index. obj is a
// pointer to a COM interface, i.e. a pointer to a pointer to a vtable.
func comVtblFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comCall invokes a COM vtable method at the given index, treating a
// negative return value as a failing HRESULT.
func comCall(obj uintptr, vtblIdx int, args ...uintptr) (uintptr, error) {
	all := make([]uintptr, 0, 1+len(args))
	all = append(all, obj)
	all = append(all, args...)
	ret, _, _ := syscall.SyscallN(comVtblFn(obj, vtblIdx), all...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtblIdx, uint32(ret))
	}
	return ret, nil
}

// comRelease calls IUnknown::Release (vtable index 2).
func comRelease(obj uintptr) {
	if obj == 0 {
		return
	}
	syscall.SyscallN(comVtblFn(obj, 2), obj)
}
