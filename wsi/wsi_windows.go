// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build windows

package wsi

import (
	"errors"
	"sync"
	"syscall"
	"unicode/utf16"
	"unsafe"
)

// Pure-Go Win32 window system integration. No cgo: every API call goes
// through syscall.NewLazyDLL/NewProc and the window procedure is a Go
// function registered with syscall.NewCallback, following the same
// convention the rest of this module's Windows code uses for COM and
// DXGI calls.

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	procGetModuleHandle  = kernel32.NewProc("GetModuleHandleW")
	procRegisterClassEx  = user32.NewProc("RegisterClassExW")
	procUnregisterClass  = user32.NewProc("UnregisterClassW")
	procCreateWindowEx   = user32.NewProc("CreateWindowExW")
	procDestroyWindow    = user32.NewProc("DestroyWindow")
	procShowWindow       = user32.NewProc("ShowWindow")
	procSetWindowText    = user32.NewProc("SetWindowTextW")
	procGetClientRect    = user32.NewProc("GetClientRect")
	procSetWindowPos     = user32.NewProc("SetWindowPos")
	procPeekMessage      = user32.NewProc("PeekMessageW")
	procTranslateMessage = user32.NewProc("TranslateMessage")
	procDispatchMessage  = user32.NewProc("DispatchMessageW")
	procDefWindowProc    = user32.NewProc("DefWindowProcW")
	procPostQuitMessage  = user32.NewProc("PostQuitMessage")
	procLoadCursor       = user32.NewProc("LoadCursorW")
	procSetWindowLongPtr = user32.NewProc("SetWindowLongPtrW")
	procGetWindowLongPtr = user32.NewProc("GetWindowLongPtrW")
)

const (
	wsOverlappedWindow = 0x00CF0000
	wsVisible          = 0x10000000
	cwUseDefault       = -0x80000000

	swHide   = 0
	swNormal = 1

	pmRemove = 0x0001

	gwlpUserdata = -21

	idcArrow = 32512

	csHRedraw = 0x0002
	csVRedraw = 0x0001

	wmDestroy  = 0x0002
	wmClose    = 0x0010
	wmKeyDown  = 0x0100
	wmKeyUp    = 0x0101
	wmSysKeyUp = 0x0105
	wmHotkey   = 0x0312
	wmSize     = 0x0005
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   syscall.Handle
	Icon       syscall.Handle
	Cursor     syscall.Handle
	Background syscall.Handle
	MenuName   *uint16
	ClassName  *uint16
	IconSm     syscall.Handle
}

type msg struct {
	Hwnd    syscall.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

func utf16Ptr(s string) *uint16 {
	u := utf16.Encode([]rune(s + "\x00"))
	return &u[0]
}

var (
	hinst         syscall.Handle
	classRegistry uint16
	wndProcPtr    = syscall.NewCallback(wndProcWin32)
)

var className = utf16Ptr("osfg_framegen_wsi")

// initWin32 initializes the Win32 platform.
func initWin32() error {
	h, _, _ := procGetModuleHandle.Call(0)
	if h == 0 {
		return errors.New("wsi: failed to obtain module handle")
	}
	hinst = syscall.Handle(h)

	cursor, _, _ := procLoadCursor.Call(0, uintptr(idcArrow))

	wc := wndClassEx{
		Size:      uint32(unsafe.Sizeof(wndClassEx{})),
		Style:     csHRedraw | csVRedraw,
		WndProc:   wndProcPtr,
		Instance:  hinst,
		Cursor:    syscall.Handle(cursor),
		ClassName: className,
	}
	atom, _, _ := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
	if atom == 0 {
		hinst = 0
		return errors.New("wsi: failed to register window class")
	}
	classRegistry = uint16(atom)

	newWindow = newWindowWin32
	dispatch = dispatchWin32
	setAppName = setAppNameWin32
	platform = Win32
	return nil
}

// deinitWin32 deinitializes the Win32 platform.
func deinitWin32() {
	if windowCount > 0 {
		for _, w := range createdWindows {
			if w != nil {
				w.Close()
			}
		}
	}
	if hinst != 0 && classRegistry != 0 {
		procUnregisterClass.Call(uintptr(classRegistry), uintptr(hinst))
		classRegistry = 0
		hinst = 0
	}
	initDummy()
}

// windowWin32 implements Window.
type windowWin32 struct {
	hwnd   syscall.Handle
	width  int
	height int
	title  string
	mapped bool
}

var (
	registryMu sync.Mutex
	byHwnd     = map[syscall.Handle]*windowWin32{}
)

// newWindowWin32 creates a new window.
func newWindowWin32(width, height int, title string) (Window, error) {
	hwnd, _, _ := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(utf16Ptr(title))),
		uintptr(wsOverlappedWindow),
		uintptr(cwUseDefault),
		uintptr(cwUseDefault),
		uintptr(width),
		uintptr(height),
		0, 0,
		uintptr(hinst),
		0,
	)
	if hwnd == 0 {
		return nil, errors.New("wsi: failed to create window")
	}
	w := &windowWin32{
		hwnd:   syscall.Handle(hwnd),
		width:  width,
		height: height,
		title:  title,
	}
	registryMu.Lock()
	byHwnd[w.hwnd] = w
	registryMu.Unlock()
	return w, nil
}

// Map makes the window visible.
func (w *windowWin32) Map() error {
	if w.mapped {
		return nil
	}
	procShowWindow.Call(uintptr(w.hwnd), swNormal)
	w.mapped = true
	return nil
}

// Unmap hides the window.
func (w *windowWin32) Unmap() error {
	if !w.mapped {
		return nil
	}
	procShowWindow.Call(uintptr(w.hwnd), swHide)
	w.mapped = false
	return nil
}

// Resize resizes the window.
func (w *windowWin32) Resize(width, height int) error {
	const swpNoMove = 0x0002
	ok, _, _ := procSetWindowPos.Call(uintptr(w.hwnd), 0, 0, 0,
		uintptr(width), uintptr(height), swpNoMove)
	if ok == 0 {
		return errors.New("wsi: failed to resize window")
	}
	w.width, w.height = width, height
	return nil
}

// SetTitle sets the window's title.
func (w *windowWin32) SetTitle(title string) error {
	ok, _, _ := procSetWindowText.Call(uintptr(w.hwnd), uintptr(unsafe.Pointer(utf16Ptr(title))))
	if ok == 0 {
		return errors.New("wsi: failed to set window title")
	}
	w.title = title
	return nil
}

// Close closes the window.
func (w *windowWin32) Close() {
	if w == nil {
		return
	}
	if w.hwnd != 0 {
		procDestroyWindow.Call(uintptr(w.hwnd))
		registryMu.Lock()
		delete(byHwnd, w.hwnd)
		registryMu.Unlock()
	}
	closeWindow(w)
	*w = windowWin32{}
}

// Width returns the window's width.
func (w *windowWin32) Width() int { return w.width }

// Height returns the window's height.
func (w *windowWin32) Height() int { return w.height }

// Title returns the window's title.
func (w *windowWin32) Title() string { return w.title }

// Handle returns the window's HWND.
func (w *windowWin32) Handle() uintptr { return uintptr(w.hwnd) }

// dispatchWin32 pumps all currently queued messages without blocking.
func dispatchWin32() {
	var m msg
	for {
		r, _, _ := procPeekMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmRemove)
		if r == 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}
}

// wndProcWin32 is the window procedure shared by every window created
// by this package. It is registered once via syscall.NewCallback.
func wndProcWin32(hwnd syscall.Handle, message uint32, wParam, lParam uintptr) uintptr {
	registryMu.Lock()
	w := byHwnd[hwnd]
	registryMu.Unlock()

	switch message {
	case wmClose:
		if w != nil && windowHandler != nil {
			windowHandler.WindowClose(w)
		}
		return 0
	case wmDestroy:
		procPostQuitMessage.Call(0)
		return 0
	case wmSize:
		if w != nil {
			width := int(lParam & 0xFFFF)
			height := int((lParam >> 16) & 0xFFFF)
			w.width, w.height = width, height
			if windowHandler != nil {
				windowHandler.WindowResize(w, width, height)
			}
		}
		return 0
	case wmKeyDown, wmKeyUp:
		if keyboardHandler != nil {
			keyboardHandler.KeyboardKey(keyFrom(int(wParam)), message == wmKeyDown, currentModifiers())
		}
		return 0
	case wmHotkey:
		if hotkeyHandler != nil {
			hotkeyHandler.Hotkey(int(wParam))
		}
		return 0
	default:
		r, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(message), wParam, lParam)
		return r
	}
}

const (
	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkCapital = 0x14
)

var procGetKeyState = user32.NewProc("GetKeyState")

func currentModifiers() Modifier {
	var mod Modifier
	if isKeyDown(vkShift) {
		mod |= ModShift
	}
	if isKeyDown(vkControl) {
		mod |= ModCtrl
	}
	if isKeyDown(vkMenu) {
		mod |= ModAlt
	}
	if isKeyToggled(vkCapital) {
		mod |= ModCapsLock
	}
	return mod
}

func isKeyDown(vk int) bool {
	r, _, _ := procGetKeyState.Call(uintptr(vk))
	return int16(r)&0x8000 != 0
}

func isKeyToggled(vk int) bool {
	r, _, _ := procGetKeyState.Call(uintptr(vk))
	return int16(r)&0x0001 != 0
}

// setAppNameWin32 updates the string used to identify the application.
// This is a no-op beyond the package-level bookkeeping: per-window
// titles are set explicitly via Window.SetTitle.
func setAppNameWin32(s string) {}
