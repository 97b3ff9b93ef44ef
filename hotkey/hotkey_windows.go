//go:build windows

package hotkey

import (
	"fmt"
	"syscall"
)

// Pure-Go RegisterHotKey/UnregisterHotKey bindings, following the same
// syscall.NewLazyDLL/NewProc convention wsi's Win32 backend uses. This
// file keeps its own handle to user32.dll rather than sharing wsi's,
// since the two packages have no other reason to couple.
var (
	user32 = syscall.NewLazyDLL("user32.dll")

	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
)

const modAlt = 0x0001

func init() {
	registerHotkey = registerHotkeyWin32
	unregisterHotkey = unregisterHotkeyWin32
}

func registerHotkeyWin32(hwnd uintptr, id int, vk uint, requireAlt bool) error {
	var mod uintptr
	if requireAlt {
		mod = modAlt
	}
	ok, _, errno := procRegisterHotKey.Call(hwnd, uintptr(id), mod, uintptr(vk))
	if ok == 0 {
		return fmt.Errorf("RegisterHotKey(id=%d, vk=0x%02X): %v", id, vk, errno)
	}
	return nil
}

func unregisterHotkeyWin32(hwnd uintptr, id int) {
	procUnregisterHotKey.Call(hwnd, uintptr(id))
}
