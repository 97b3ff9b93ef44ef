// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build windows

package wsi

// keymap maps Win32 virtual-key codes to Key values.
// It must be an indexable array, not a map (see keyFrom in keymap.go).
var keymap = [256]Key{
	0x08: KeyBackspace,
	0x09: KeyTab,
	0x0D: KeyReturn,
	0x10: KeyLShift,
	0x11: KeyLCtrl,
	0x12: KeyLAlt,
	0x1B: KeyEsc,
	0x20: KeySpace,
	0x21: KeyPageUp,
	0x22: KeyPageDown,
	0x23: KeyEnd,
	0x24: KeyHome,
	0x25: KeyLeft,
	0x26: KeyUp,
	0x27: KeyRight,
	0x28: KeyDown,
	0x2D: KeyInsert,
	0x2E: KeyDelete,

	0x30: Key0,
	0x31: Key1,
	0x32: Key2,
	0x33: Key3,
	0x34: Key4,
	0x35: Key5,
	0x36: Key6,
	0x37: Key7,
	0x38: Key8,
	0x39: Key9,

	0x41: KeyA,
	0x42: KeyB,
	0x43: KeyC,
	0x44: KeyD,
	0x45: KeyE,
	0x46: KeyF,
	0x47: KeyG,
	0x48: KeyH,
	0x49: KeyI,
	0x4A: KeyJ,
	0x4B: KeyK,
	0x4C: KeyL,
	0x4D: KeyM,
	0x4E: KeyN,
	0x4F: KeyO,
	0x50: KeyP,
	0x51: KeyQ,
	0x52: KeyR,
	0x53: KeyS,
	0x54: KeyT,
	0x55: KeyU,
	0x56: KeyV,
	0x57: KeyW,
	0x58: KeyX,
	0x59: KeyY,
	0x5A: KeyZ,

	0x5B: KeyLMeta,
	0x5C: KeyRMeta,

	0x60: KeyPad0,
	0x61: KeyPad1,
	0x62: KeyPad2,
	0x63: KeyPad3,
	0x64: KeyPad4,
	0x65: KeyPad5,
	0x66: KeyPad6,
	0x67: KeyPad7,
	0x68: KeyPad8,
	0x69: KeyPad9,
	0x6A: KeyPadStar,
	0x6B: KeyPadPlus,
	0x6D: KeyPadMinus,
	0x6E: KeyPadDot,
	0x6F: KeyPadSlash,

	0x70: KeyF1,
	0x71: KeyF2,
	0x72: KeyF3,
	0x73: KeyF4,
	0x74: KeyF5,
	0x75: KeyF6,
	0x76: KeyF7,
	0x77: KeyF8,
	0x78: KeyF9,
	0x79: KeyF10,
	0x7A: KeyF11,
	0x7B: KeyF12,
	0x7C: KeyF13,
	0x7D: KeyF14,
	0x7E: KeyF15,
	0x7F: KeyF16,
	0x80: KeyF17,
	0x81: KeyF18,
	0x82: KeyF19,
	0x83: KeyF20,
	0x84: KeyF21,
	0x85: KeyF22,
	0x86: KeyF23,
	0x87: KeyF24,

	0x90: KeyPadNumLock,
	0x91: KeyScrollLock,

	0xA0: KeyLShift,
	0xA1: KeyRShift,
	0xA2: KeyLCtrl,
	0xA3: KeyRCtrl,
	0xA4: KeyLAlt,
	0xA5: KeyRAlt,

	0xBA: KeySemicolon,
	0xBB: KeyEqual,
	0xBC: KeyComma,
	0xBD: KeyMinus,
	0xBE: KeyDot,
	0xBF: KeySlash,
	0xC0: KeyGrave,
	0xDB: KeyLBracket,
	0xDC: KeyBackslash,
	0xDD: KeyRBracket,
	0xDE: KeyApostrophe,
}
