// Package config loads and saves the frame generator's settings file:
// sections of `key = value` pairs (spec.md §6), parsed and rewritten
// with gopkg.in/ini.v1 rather than a hand-rolled scanner. A missing
// file loads as Default(); an unparsable individual key falls back to
// its default value rather than failing the whole load, matching
// spec.md §7's ConfigurationInvalid handling ("the system falls back
// to defaults on load, fails on save").
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// FrameGenMode selects how many presents spec.md's PipelineOrchestrator
// emits per captured frame, or whether it generates at all.
type FrameGenMode int

const (
	ModeDisabled FrameGenMode = iota
	Mode2X
	Mode3X
	Mode4X
)

var frameGenModeNames = [...]string{"Disabled", "2X", "3X", "4X"}

func (m FrameGenMode) String() string {
	if int(m) < 0 || int(m) >= len(frameGenModeNames) {
		return "Unknown"
	}
	return frameGenModeNames[m]
}

func parseFrameGenMode(s string) (FrameGenMode, error) {
	for i, name := range frameGenModeNames {
		if strings.EqualFold(name, s) {
			return FrameGenMode(i), nil
		}
	}
	return 0, fmt.Errorf("config: invalid FrameGen Mode %q", s)
}

// CaptureMethod selects which Windows screen-duplication API the
// capture collaborator prefers.
type CaptureMethod int

const (
	CaptureAuto CaptureMethod = iota
	CaptureDXGI
	CaptureWGC
)

var captureMethodNames = [...]string{"Auto", "DXGI", "WGC"}

func (m CaptureMethod) String() string {
	if int(m) < 0 || int(m) >= len(captureMethodNames) {
		return "Unknown"
	}
	return captureMethodNames[m]
}

func parseCaptureMethod(s string) (CaptureMethod, error) {
	for i, name := range captureMethodNames {
		if strings.EqualFold(name, s) {
			return CaptureMethod(i), nil
		}
	}
	return 0, fmt.Errorf("config: invalid Capture Method %q", s)
}

// GPUMode selects whether capture and compute share one adapter.
type GPUMode int

const (
	GPUSingle GPUMode = iota
	GPUDual
	GPUAuto
)

var gpuModeNames = [...]string{"Single", "Dual", "Auto"}

func (m GPUMode) String() string {
	if int(m) < 0 || int(m) >= len(gpuModeNames) {
		return "Unknown"
	}
	return gpuModeNames[m]
}

func parseGPUMode(s string) (GPUMode, error) {
	for i, name := range gpuModeNames {
		if strings.EqualFold(name, s) {
			return GPUMode(i), nil
		}
	}
	return 0, fmt.Errorf("config: invalid GPU Mode %q", s)
}

// OverlayPosition anchors the stats overlay to a corner of the window.
type OverlayPosition int

const (
	PositionTopLeft OverlayPosition = iota
	PositionTopRight
	PositionBottomLeft
	PositionBottomRight
)

// Windows virtual-key codes for the default hotkey bindings
// (VK_F10, VK_F11, VK_F12).
const (
	vkF10 = 0x79
	vkF11 = 0x7A
	vkF12 = 0x7B
)

type FrameGenSettings struct {
	Mode            FrameGenMode
	Enabled         bool
	TargetFramerate float64 // 0 = match display
}

type CaptureSettings struct {
	Method  CaptureMethod
	Monitor uint
	Cursor  bool
}

type GPUSettings struct {
	Mode      GPUMode
	Primary   uint
	Secondary uint
}

type OpticalFlowSettings struct {
	BlockSize            uint
	SearchRadius         uint
	SceneChangeThreshold float64
}

type PresentationSettings struct {
	VSync      bool
	Borderless bool
	Width      uint
	Height     uint
}

type OverlaySettings struct {
	Show      bool
	FPS       bool
	FrameTime bool
	GPUUsage  bool
	Position  OverlayPosition
	Scale     float64
}

type HotkeySettings struct {
	ToggleFrameGen uint
	ToggleOverlay  uint
	CycleMode      uint
	RequireAlt     bool
}

type AdvancedSettings struct {
	FrameBufferCount uint
	PeerToPeer       bool
	Debug            bool
	LogFile          string
}

// Settings is the full, typed view of the configuration file.
type Settings struct {
	FrameGen     FrameGenSettings
	Capture      CaptureSettings
	GPU          GPUSettings
	OpticalFlow  OpticalFlowSettings
	Presentation PresentationSettings
	Overlay      OverlaySettings
	Hotkeys      HotkeySettings
	Advanced     AdvancedSettings
}

// Default returns the settings used when no configuration file exists.
func Default() *Settings {
	return &Settings{
		FrameGen: FrameGenSettings{
			Mode:            Mode2X,
			Enabled:         true,
			TargetFramerate: 0,
		},
		Capture: CaptureSettings{
			Method:  CaptureAuto,
			Monitor: 0,
			Cursor:  true,
		},
		GPU: GPUSettings{
			Mode:      GPUAuto,
			Primary:   0,
			Secondary: 1,
		},
		OpticalFlow: OpticalFlowSettings{
			BlockSize:            8,
			SearchRadius:         4,
			SceneChangeThreshold: 0.35,
		},
		Presentation: PresentationSettings{
			VSync:      true,
			Borderless: false,
			Width:      1280,
			Height:     720,
		},
		Overlay: OverlaySettings{
			Show:      false,
			FPS:       true,
			FrameTime: false,
			GPUUsage:  false,
			Position:  PositionTopLeft,
			Scale:     1.0,
		},
		Hotkeys: HotkeySettings{
			ToggleFrameGen: vkF10,
			ToggleOverlay:  vkF11,
			CycleMode:      vkF12,
			RequireAlt:     true,
		},
		Advanced: AdvancedSettings{
			FrameBufferCount: 2,
			PeerToPeer:       false,
			Debug:            false,
			LogFile:          "",
		},
	}
}

// Validate checks the cross-field and range rules spec.md §6 states
// explicitly: BlockSize ∈ [4,32], SceneChangeThreshold ∈ [0,1], and
// Primary ≠ Secondary when GPU.Mode is Dual.
func (s *Settings) Validate() error {
	if s.OpticalFlow.BlockSize < 4 || s.OpticalFlow.BlockSize > 32 {
		return fmt.Errorf("config: OpticalFlow.BlockSize %d out of range [4,32]", s.OpticalFlow.BlockSize)
	}
	if s.OpticalFlow.SceneChangeThreshold < 0 || s.OpticalFlow.SceneChangeThreshold > 1 {
		return fmt.Errorf("config: OpticalFlow.SceneChangeThreshold %v out of range [0,1]", s.OpticalFlow.SceneChangeThreshold)
	}
	if s.GPU.Mode == GPUDual && s.GPU.Primary == s.GPU.Secondary {
		return fmt.Errorf("config: GPU.Primary and GPU.Secondary must differ in Dual mode, both are %d", s.GPU.Primary)
	}
	return nil
}

// Load reads path and returns the settings it describes. A missing
// file is not an error: Load returns Default(). Keys present but
// unparsable (a non-numeric Monitor, an unknown Mode name) fall back
// individually to their default's value rather than failing the load.
func Load(path string) (*Settings, error) {
	def := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return def, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return def, fmt.Errorf("config: load %s: %w", path, err)
	}

	s := Default()

	fg := f.Section("FrameGen")
	if mode, err := parseFrameGenMode(fg.Key("Mode").MustString(def.FrameGen.Mode.String())); err == nil {
		s.FrameGen.Mode = mode
	}
	s.FrameGen.Enabled = fg.Key("Enabled").MustBool(def.FrameGen.Enabled)
	s.FrameGen.TargetFramerate = fg.Key("TargetFramerate").MustFloat64(def.FrameGen.TargetFramerate)

	capSec := f.Section("Capture")
	if method, err := parseCaptureMethod(capSec.Key("Method").MustString(def.Capture.Method.String())); err == nil {
		s.Capture.Method = method
	}
	s.Capture.Monitor = uint(capSec.Key("Monitor").MustUint(uint(def.Capture.Monitor)))
	s.Capture.Cursor = capSec.Key("Cursor").MustBool(def.Capture.Cursor)

	gpu := f.Section("GPU")
	if mode, err := parseGPUMode(gpu.Key("Mode").MustString(def.GPU.Mode.String())); err == nil {
		s.GPU.Mode = mode
	}
	s.GPU.Primary = uint(gpu.Key("Primary").MustUint(uint(def.GPU.Primary)))
	s.GPU.Secondary = uint(gpu.Key("Secondary").MustUint(uint(def.GPU.Secondary)))

	of := f.Section("OpticalFlow")
	s.OpticalFlow.BlockSize = uint(of.Key("BlockSize").MustUint(uint(def.OpticalFlow.BlockSize)))
	s.OpticalFlow.SearchRadius = uint(of.Key("SearchRadius").MustUint(uint(def.OpticalFlow.SearchRadius)))
	s.OpticalFlow.SceneChangeThreshold = of.Key("SceneChangeThreshold").MustFloat64(def.OpticalFlow.SceneChangeThreshold)

	pres := f.Section("Presentation")
	s.Presentation.VSync = pres.Key("VSync").MustBool(def.Presentation.VSync)
	s.Presentation.Borderless = pres.Key("Borderless").MustBool(def.Presentation.Borderless)
	s.Presentation.Width = uint(pres.Key("Width").MustUint(uint(def.Presentation.Width)))
	s.Presentation.Height = uint(pres.Key("Height").MustUint(uint(def.Presentation.Height)))

	ov := f.Section("Overlay")
	s.Overlay.Show = ov.Key("Show").MustBool(def.Overlay.Show)
	s.Overlay.FPS = ov.Key("FPS").MustBool(def.Overlay.FPS)
	s.Overlay.FrameTime = ov.Key("FrameTime").MustBool(def.Overlay.FrameTime)
	s.Overlay.GPUUsage = ov.Key("GPUUsage").MustBool(def.Overlay.GPUUsage)
	pos := ov.Key("Position").MustInt(int(def.Overlay.Position))
	if pos < int(PositionTopLeft) || pos > int(PositionBottomRight) {
		pos = int(def.Overlay.Position)
	}
	s.Overlay.Position = OverlayPosition(pos)
	s.Overlay.Scale = ov.Key("Scale").MustFloat64(def.Overlay.Scale)

	hk := f.Section("Hotkeys")
	s.Hotkeys.ToggleFrameGen = uint(hk.Key("ToggleFrameGen").MustUint(uint(def.Hotkeys.ToggleFrameGen)))
	s.Hotkeys.ToggleOverlay = uint(hk.Key("ToggleOverlay").MustUint(uint(def.Hotkeys.ToggleOverlay)))
	s.Hotkeys.CycleMode = uint(hk.Key("CycleMode").MustUint(uint(def.Hotkeys.CycleMode)))
	s.Hotkeys.RequireAlt = hk.Key("RequireAlt").MustBool(def.Hotkeys.RequireAlt)

	adv := f.Section("Advanced")
	s.Advanced.FrameBufferCount = uint(adv.Key("FrameBufferCount").MustUint(uint(def.Advanced.FrameBufferCount)))
	s.Advanced.PeerToPeer = adv.Key("PeerToPeer").MustBool(def.Advanced.PeerToPeer)
	s.Advanced.Debug = adv.Key("Debug").MustBool(def.Advanced.Debug)
	s.Advanced.LogFile = adv.Key("LogFile").MustString(def.Advanced.LogFile)

	return s, nil
}

// Save validates s and rewrites path with identical sectioning to
// what Load expects. Per spec.md §7, an invalid Settings fails the
// save rather than being silently corrected.
func Save(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("config: refusing to save invalid settings: %w", err)
	}

	f := ini.Empty()

	fg, _ := f.NewSection("FrameGen")
	fg.Key("Mode").SetValue(s.FrameGen.Mode.String())
	fg.Key("Enabled").SetValue(boolString(s.FrameGen.Enabled))
	fg.Key("TargetFramerate").SetValue(fmt.Sprintf("%g", s.FrameGen.TargetFramerate))

	capSec, _ := f.NewSection("Capture")
	capSec.Key("Method").SetValue(s.Capture.Method.String())
	capSec.Key("Monitor").SetValue(fmt.Sprintf("%d", s.Capture.Monitor))
	capSec.Key("Cursor").SetValue(boolString(s.Capture.Cursor))

	gpu, _ := f.NewSection("GPU")
	gpu.Key("Mode").SetValue(s.GPU.Mode.String())
	gpu.Key("Primary").SetValue(fmt.Sprintf("%d", s.GPU.Primary))
	gpu.Key("Secondary").SetValue(fmt.Sprintf("%d", s.GPU.Secondary))

	of, _ := f.NewSection("OpticalFlow")
	of.Key("BlockSize").SetValue(fmt.Sprintf("%d", s.OpticalFlow.BlockSize))
	of.Key("SearchRadius").SetValue(fmt.Sprintf("%d", s.OpticalFlow.SearchRadius))
	of.Key("SceneChangeThreshold").SetValue(fmt.Sprintf("%g", s.OpticalFlow.SceneChangeThreshold))

	pres, _ := f.NewSection("Presentation")
	pres.Key("VSync").SetValue(boolString(s.Presentation.VSync))
	pres.Key("Borderless").SetValue(boolString(s.Presentation.Borderless))
	pres.Key("Width").SetValue(fmt.Sprintf("%d", s.Presentation.Width))
	pres.Key("Height").SetValue(fmt.Sprintf("%d", s.Presentation.Height))

	ov, _ := f.NewSection("Overlay")
	ov.Key("Show").SetValue(boolString(s.Overlay.Show))
	ov.Key("FPS").SetValue(boolString(s.Overlay.FPS))
	ov.Key("FrameTime").SetValue(boolString(s.Overlay.FrameTime))
	ov.Key("GPUUsage").SetValue(boolString(s.Overlay.GPUUsage))
	ov.Key("Position").SetValue(fmt.Sprintf("%d", s.Overlay.Position))
	ov.Key("Scale").SetValue(fmt.Sprintf("%g", s.Overlay.Scale))

	hk, _ := f.NewSection("Hotkeys")
	hk.Key("ToggleFrameGen").SetValue(fmt.Sprintf("%d", s.Hotkeys.ToggleFrameGen))
	hk.Key("ToggleOverlay").SetValue(fmt.Sprintf("%d", s.Hotkeys.ToggleOverlay))
	hk.Key("CycleMode").SetValue(fmt.Sprintf("%d", s.Hotkeys.CycleMode))
	hk.Key("RequireAlt").SetValue(boolString(s.Hotkeys.RequireAlt))

	adv, _ := f.NewSection("Advanced")
	adv.Key("FrameBufferCount").SetValue(fmt.Sprintf("%d", s.Advanced.FrameBufferCount))
	adv.Key("PeerToPeer").SetValue(boolString(s.Advanced.PeerToPeer))
	adv.Key("Debug").SetValue(boolString(s.Advanced.Debug))
	adv.Key("LogFile").SetValue(s.Advanced.LogFile)

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("config: save %s: %w", path, err)
	}
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
