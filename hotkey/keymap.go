package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Windows virtual-key codes for the named keys this table exposes.
// F-keys and digits are contiguous ranges; letters match their ASCII
// uppercase codes, which is also true of the Win32 VK constants.
const (
	vkF1  = 0x70
	vkF24 = 0x87
)

var vkNames = buildVKNames()

func buildVKNames() map[uint]string {
	m := make(map[uint]string, 24+26+10)
	for i := 0; i <= vkF24-vkF1; i++ {
		m[uint(vkF1+i)] = fmt.Sprintf("F%d", i+1)
	}
	for c := 'A'; c <= 'Z'; c++ {
		m[uint(c)] = string(c)
	}
	for c := '0'; c <= '9'; c++ {
		m[uint(c)] = string(c)
	}
	return m
}

var nameVKs = buildNameVKs()

func buildNameVKs() map[string]uint {
	m := make(map[string]uint, len(vkNames))
	for vk, name := range vkNames {
		m[strings.ToUpper(name)] = vk
	}
	return m
}

// VirtualKeyToString renders a virtual-key code as a human-readable
// name ("F10", "A", "5"), or its hex form if the code isn't in the
// named table.
func VirtualKeyToString(vk uint) string {
	if name, ok := vkNames[vk]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", vk)
}

// StringToVirtualKey parses a key name produced by VirtualKeyToString,
// case-insensitively, also accepting a bare "0x.." or decimal code.
func StringToVirtualKey(s string) (uint, error) {
	if vk, ok := nameVKs[strings.ToUpper(s)]; ok {
		return vk, nil
	}
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		return uint(n), nil
	}
	return 0, fmt.Errorf("hotkey: unrecognized key name %q", s)
}

// FormatBinding renders a key name together with its Alt requirement,
// e.g. "Alt+F10" or plain "F10" when requireAlt is false.
func FormatBinding(vk uint, requireAlt bool) string {
	name := VirtualKeyToString(vk)
	if requireAlt {
		return "Alt+" + name
	}
	return name
}

// ParseBinding is the inverse of FormatBinding.
func ParseBinding(s string) (vk uint, requireAlt bool, err error) {
	if strings.HasPrefix(strings.ToUpper(s), "ALT+") {
		vk, err = StringToVirtualKey(s[len("Alt+"):])
		return vk, true, err
	}
	vk, err = StringToVirtualKey(s)
	return vk, false, err
}
