package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/osfg-go/framegen/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.ini")
	s, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := config.Default()
	if *s != *def {
		t.Fatalf("Load of missing file:\nhave %+v\nwant %+v", *s, *def)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.ini")

	s := config.Default()
	s.FrameGen.Mode = config.Mode4X
	s.FrameGen.Enabled = false
	s.Capture.Method = config.CaptureWGC
	s.Capture.Monitor = 2
	s.GPU.Mode = config.GPUDual
	s.GPU.Primary = 0
	s.GPU.Secondary = 1
	s.OpticalFlow.BlockSize = 16
	s.OpticalFlow.SearchRadius = 8
	s.OpticalFlow.SceneChangeThreshold = 0.5
	s.Presentation.Width = 1920
	s.Presentation.Height = 1080
	s.Overlay.Show = true
	s.Overlay.Position = config.PositionBottomRight
	s.Overlay.Scale = 1.5
	s.Hotkeys.ToggleFrameGen = 0x7A
	s.Advanced.LogFile = "framegen.log"

	if err := config.Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *s {
		t.Fatalf("round trip:\nhave %+v\nwant %+v", *got, *s)
	}
}

func TestLoadFallsBackPerKeyOnUnparsableValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.ini")
	contents := "[FrameGen]\nMode = NotAMode\nEnabled = not-a-bool\n\n[OpticalFlow]\nBlockSize = not-a-number\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := config.Default()
	if got.FrameGen.Mode != def.FrameGen.Mode {
		t.Fatalf("FrameGen.Mode fallback:\nhave %v\nwant %v", got.FrameGen.Mode, def.FrameGen.Mode)
	}
	if got.FrameGen.Enabled != def.FrameGen.Enabled {
		t.Fatalf("FrameGen.Enabled fallback:\nhave %v\nwant %v", got.FrameGen.Enabled, def.FrameGen.Enabled)
	}
	if got.OpticalFlow.BlockSize != def.OpticalFlow.BlockSize {
		t.Fatalf("OpticalFlow.BlockSize fallback:\nhave %v\nwant %v", got.OpticalFlow.BlockSize, def.OpticalFlow.BlockSize)
	}
}

func TestValidateRejectsBlockSizeOutOfRange(t *testing.T) {
	s := config.Default()
	s.OpticalFlow.BlockSize = 2
	if err := s.Validate(); err == nil {
		t.Fatalf("Validate with BlockSize=2: have nil error, want one")
	}
	s.OpticalFlow.BlockSize = 64
	if err := s.Validate(); err == nil {
		t.Fatalf("Validate with BlockSize=64: have nil error, want one")
	}
}

func TestValidateRejectsSceneChangeThresholdOutOfRange(t *testing.T) {
	s := config.Default()
	s.OpticalFlow.SceneChangeThreshold = -0.1
	if err := s.Validate(); err == nil {
		t.Fatalf("Validate with threshold=-0.1: have nil error, want one")
	}
	s.OpticalFlow.SceneChangeThreshold = 1.1
	if err := s.Validate(); err == nil {
		t.Fatalf("Validate with threshold=1.1: have nil error, want one")
	}
}

func TestValidateRejectsEqualPrimaryAndSecondaryInDualMode(t *testing.T) {
	s := config.Default()
	s.GPU.Mode = config.GPUDual
	s.GPU.Primary = 1
	s.GPU.Secondary = 1
	if err := s.Validate(); err == nil {
		t.Fatalf("Validate with Primary==Secondary in Dual mode: have nil error, want one")
	}
	s.GPU.Secondary = 2
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate with Primary!=Secondary: have %v, want nil", err)
	}
}

func TestSaveRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.ini")
	s := config.Default()
	s.OpticalFlow.BlockSize = 1
	if err := config.Save(path, s); err == nil {
		t.Fatalf("Save with invalid settings: have nil error, want one")
	}
}
