// Package hotkey registers system-wide keyboard shortcuts and routes
// them to the pipeline's user-facing toggles (spec.md §6's [Hotkeys]
// section: ToggleFrameGen, ToggleOverlay, CycleMode, each a
// virtual-key code, plus a single RequireAlt modifier shared by all
// three). The platform implementation is selected at init time,
// following the same func-pointer dispatch pattern capture and wsi
// use to pick between a Win32 backend and a no-op stub.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/osfg-go/framegen/wsi"
)

// Action identifies which of the pipeline's user-facing toggles a
// hotkey triggers.
type Action int

const (
	ActionToggleFrameGen Action = iota
	ActionToggleOverlay
	ActionCycleMode
)

func (a Action) String() string {
	switch a {
	case ActionToggleFrameGen:
		return "ToggleFrameGen"
	case ActionToggleOverlay:
		return "ToggleOverlay"
	case ActionCycleMode:
		return "CycleMode"
	default:
		return "unknown"
	}
}

// ActionSink receives the toggles a registered hotkey fires. A
// *pipeline.Orchestrator satisfies the FrameGen/Mode methods directly;
// ToggleOverlay is expected to come from a small adapter composing the
// orchestrator with the overlay collaborator, since neither owns the
// other.
type ActionSink interface {
	ToggleFrameGen()
	ToggleOverlay()
	CycleMode()
}

// Binding pairs a virtual-key code with the action it should trigger
// when pressed, with RequireAlt held down or not.
type Binding struct {
	VK         uint
	RequireAlt bool
	Action     Action
}

// registerHotkey and unregisterHotkey are filled in by the platform
// init file (hotkey_windows.go or hotkey_dummy.go).
var (
	registerHotkey   func(hwnd uintptr, id int, vk uint, requireAlt bool) error
	unregisterHotkey func(hwnd uintptr, id int)
)

// Manager owns zero or more system-wide hotkey registrations and
// dispatches wsi's WM_HOTKEY notifications to an ActionSink.
type Manager struct {
	mu      sync.Mutex
	hwnd    uintptr
	sink    ActionSink
	log     *slog.Logger
	actions map[int]Action
	ids     []int
}

// New registers every binding against hwnd (the presenter's window
// handle) and installs itself as wsi's hotkey handler. If any
// registration fails, the bindings already registered are rolled back
// before the error is returned.
func New(hwnd uintptr, bindings []Binding, sink ActionSink, log *slog.Logger) (*Manager, error) {
	if sink == nil {
		return nil, errors.New("hotkey: nil ActionSink")
	}
	m := &Manager{
		hwnd:    hwnd,
		sink:    sink,
		log:     log,
		actions: make(map[int]Action, len(bindings)),
	}
	for i, b := range bindings {
		id := i + 1
		if err := registerHotkey(hwnd, id, b.VK, b.RequireAlt); err != nil {
			m.unregisterAll()
			return nil, fmt.Errorf("hotkey: registering %s (vk=0x%02X): %w", b.Action, b.VK, err)
		}
		m.actions[id] = b.Action
		m.ids = append(m.ids, id)
	}
	wsi.SetHotkeyHandler(m)
	return m, nil
}

func (m *Manager) unregisterAll() {
	for _, id := range m.ids {
		unregisterHotkey(m.hwnd, id)
	}
	m.ids = nil
}

// Hotkey implements wsi.HotkeyHandler, dispatching the fired binding's
// action to the ActionSink.
func (m *Manager) Hotkey(id int) {
	m.mu.Lock()
	action, ok := m.actions[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.log != nil {
		m.log.Debug("hotkey fired", "action", action.String())
	}
	switch action {
	case ActionToggleFrameGen:
		m.sink.ToggleFrameGen()
	case ActionToggleOverlay:
		m.sink.ToggleOverlay()
	case ActionCycleMode:
		m.sink.CycleMode()
	}
}

// Close unregisters every hotkey this Manager owns.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterAll()
}
