package hotkey

import (
	"errors"
	"testing"
)

// fakeSink records which ActionSink methods fired.
type fakeSink struct {
	toggleFrameGen, toggleOverlay, cycleMode int
}

func (f *fakeSink) ToggleFrameGen() { f.toggleFrameGen++ }
func (f *fakeSink) ToggleOverlay()  { f.toggleOverlay++ }
func (f *fakeSink) CycleMode()      { f.cycleMode++ }

// withFakeRegistration overrides the platform dispatch vars for the
// duration of a test, restoring the real ones (dummy or Win32,
// depending on build) afterward.
func withFakeRegistration(t *testing.T, register func(uintptr, int, uint, bool) error, unregister func(uintptr, int)) {
	t.Helper()
	origRegister, origUnregister := registerHotkey, unregisterHotkey
	registerHotkey, unregisterHotkey = register, unregister
	t.Cleanup(func() { registerHotkey, unregisterHotkey = origRegister, origUnregister })
}

func TestNewRegistersEveryBindingAndDispatches(t *testing.T) {
	var registered []int
	withFakeRegistration(t,
		func(hwnd uintptr, id int, vk uint, requireAlt bool) error {
			registered = append(registered, id)
			return nil
		},
		func(hwnd uintptr, id int) {},
	)

	sink := &fakeSink{}
	bindings := []Binding{
		{VK: 0x79, RequireAlt: true, Action: ActionToggleFrameGen},
		{VK: 0x7A, RequireAlt: true, Action: ActionToggleOverlay},
		{VK: 0x7B, RequireAlt: true, Action: ActionCycleMode},
	}
	m, err := New(0, bindings, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(registered) != 3 {
		t.Fatalf("registered ids: have %d, want 3", len(registered))
	}

	m.Hotkey(registered[0])
	m.Hotkey(registered[1])
	m.Hotkey(registered[2])
	if sink.toggleFrameGen != 1 || sink.toggleOverlay != 1 || sink.cycleMode != 1 {
		t.Fatalf("sink calls: have %+v, want one of each", sink)
	}
}

func TestHotkeyIgnoresUnknownID(t *testing.T) {
	withFakeRegistration(t,
		func(uintptr, int, uint, bool) error { return nil },
		func(uintptr, int) {},
	)
	sink := &fakeSink{}
	m, err := New(0, []Binding{{VK: 0x79, Action: ActionToggleFrameGen}}, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Hotkey(999)
	if sink.toggleFrameGen != 0 {
		t.Fatalf("sink fired on unknown id: have %d, want 0", sink.toggleFrameGen)
	}
}

func TestNewRollsBackOnPartialRegistrationFailure(t *testing.T) {
	var registered, unregistered []int
	wantErr := errors.New("synthetic failure")
	withFakeRegistration(t,
		func(hwnd uintptr, id int, vk uint, requireAlt bool) error {
			if id == 2 {
				return wantErr
			}
			registered = append(registered, id)
			return nil
		},
		func(hwnd uintptr, id int) { unregistered = append(unregistered, id) },
	)

	sink := &fakeSink{}
	bindings := []Binding{
		{VK: 0x79, Action: ActionToggleFrameGen},
		{VK: 0x7A, Action: ActionToggleOverlay},
	}
	_, err := New(0, bindings, sink, nil)
	if err == nil {
		t.Fatalf("New: have nil error, want one wrapping the registration failure")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("New error:\nhave %v\nwant wrapping %v", err, wantErr)
	}
	if len(unregistered) != 1 || unregistered[0] != 1 {
		t.Fatalf("unregistered on rollback: have %v, want [1]", unregistered)
	}
}

func TestCloseUnregistersEveryBinding(t *testing.T) {
	var unregistered []int
	withFakeRegistration(t,
		func(uintptr, int, uint, bool) error { return nil },
		func(hwnd uintptr, id int) { unregistered = append(unregistered, id) },
	)
	sink := &fakeSink{}
	bindings := []Binding{
		{VK: 0x79, Action: ActionToggleFrameGen},
		{VK: 0x7A, Action: ActionCycleMode},
	}
	m, err := New(0, bindings, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Close()
	if len(unregistered) != 2 {
		t.Fatalf("unregistered on Close: have %v, want 2 entries", unregistered)
	}
}

func TestVirtualKeyRoundTrip(t *testing.T) {
	cases := []struct {
		vk   uint
		name string
	}{
		{0x70, "F1"},
		{0x79, "F10"},
		{0x87, "F24"},
		{'A', "A"},
		{'5', "5"},
	}
	for _, c := range cases {
		if got := VirtualKeyToString(c.vk); got != c.name {
			t.Fatalf("VirtualKeyToString(0x%02X): have %q, want %q", c.vk, got, c.name)
		}
		got, err := StringToVirtualKey(c.name)
		if err != nil {
			t.Fatalf("StringToVirtualKey(%q): %v", c.name, err)
		}
		if got != c.vk {
			t.Fatalf("StringToVirtualKey(%q): have 0x%02X, want 0x%02X", c.name, got, c.vk)
		}
	}
}

func TestStringToVirtualKeyAcceptsNumericFallback(t *testing.T) {
	vk, err := StringToVirtualKey("0x79")
	if err != nil {
		t.Fatalf("StringToVirtualKey(0x79): %v", err)
	}
	if vk != 0x79 {
		t.Fatalf("StringToVirtualKey(0x79): have 0x%02X, want 0x79", vk)
	}
}

func TestStringToVirtualKeyRejectsUnknownName(t *testing.T) {
	if _, err := StringToVirtualKey("NotAKey"); err == nil {
		t.Fatalf("StringToVirtualKey(NotAKey): have nil error, want one")
	}
}

func TestFormatAndParseBindingRoundTrip(t *testing.T) {
	cases := []struct {
		vk         uint
		requireAlt bool
	}{
		{0x79, true},
		{0x7A, false},
	}
	for _, c := range cases {
		s := FormatBinding(c.vk, c.requireAlt)
		vk, requireAlt, err := ParseBinding(s)
		if err != nil {
			t.Fatalf("ParseBinding(%q): %v", s, err)
		}
		if vk != c.vk || requireAlt != c.requireAlt {
			t.Fatalf("ParseBinding(%q): have (0x%02X, %v), want (0x%02X, %v)", s, vk, requireAlt, c.vk, c.requireAlt)
		}
	}
}
