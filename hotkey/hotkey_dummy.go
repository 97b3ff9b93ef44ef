//go:build !windows

package hotkey

import "errors"

func init() {
	registerHotkey = registerHotkeyDummy
	unregisterHotkey = unregisterHotkeyDummy
}

func registerHotkeyDummy(hwnd uintptr, id int, vk uint, requireAlt bool) error {
	return errors.New("hotkey: no global-hotkey implementation on this platform")
}

func unregisterHotkeyDummy(hwnd uintptr, id int) {}
