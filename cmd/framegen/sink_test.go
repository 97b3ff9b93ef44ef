package main

import (
	"testing"

	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/interop"
	"github.com/osfg-go/framegen/interpolation"
	"github.com/osfg-go/framegen/opticalflow"
	"github.com/osfg-go/framegen/overlay"
	"github.com/osfg-go/framegen/pipeline"
)

type noopIngester struct{}

func (noopIngester) Ingest(cb driver.CmdBuffer, timeoutMs int) error { return capture.ErrTimedOut }
func (noopIngester) CaptureStats() capture.Stats                    { return capture.Stats{} }

type noopPresenter struct{}

func (noopPresenter) Present(cb driver.CmdBuffer, src driver.Image) error { return nil }
func (noopPresenter) Flip(syncInterval int) error                        { return nil }
func (noopPresenter) ProcessMessages() bool                              { return true }
func (noopPresenter) IsWindowOpen() bool                                 { return true }

func newTestOrchestrator(t *testing.T) *pipeline.Orchestrator {
	t.Helper()
	gc, err := gpuctx.New(&soft.Driver{}, 0, nil)
	if err != nil {
		t.Fatalf("gpuctx.New: %v", err)
	}
	t.Cleanup(gc.Close)

	ip, err := interop.New(gc.GPU(), interop.Config{Width: 8, Height: 8}, nil)
	if err != nil {
		t.Fatalf("interop.New: %v", err)
	}
	t.Cleanup(ip.Destroy)

	flow, err := opticalflow.New(gc.GPU(), opticalflow.Config{Width: 8, Height: 8, BlockSize: 4, SearchRadius: 2}, 1.0, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	t.Cleanup(flow.Destroy)

	interp, err := interpolation.New(gc.GPU(), interpolation.Config{Width: 8, Height: 8, MotionScale: 1.0 / 16}, nil)
	if err != nil {
		t.Fatalf("interpolation.New: %v", err)
	}
	t.Cleanup(interp.Destroy)

	orch, err := pipeline.New(gc, noopIngester{}, ip, flow, interp, noopPresenter{}, pipeline.Config{InitialMode: pipeline.Mode2X}, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return orch
}

func newTestOverlay(t *testing.T) *overlay.Overlay {
	t.Helper()
	gc, err := gpuctx.New(&soft.Driver{}, 0, nil)
	if err != nil {
		t.Fatalf("gpuctx.New: %v", err)
	}
	t.Cleanup(gc.Close)

	ov, err := overlay.New(gc.GPU(), overlay.Config{Scale: 1.0, Show: false, FPS: true}, nil)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}
	t.Cleanup(ov.Destroy)
	return ov
}

func TestActionSinkDelegatesToOrchestratorAndOverlay(t *testing.T) {
	orch := newTestOrchestrator(t)
	ov := newTestOverlay(t)
	sink := &actionSink{orch: orch, ov: ov}

	if orch.FrameGenEnabled() {
		t.Fatalf("FrameGenEnabled at construction: have true, want false")
	}
	sink.ToggleFrameGen()
	if !orch.FrameGenEnabled() {
		t.Fatalf("FrameGenEnabled after ToggleFrameGen: have false, want true")
	}

	if orch.CurrentMode() != pipeline.Mode2X {
		t.Fatalf("CurrentMode at construction: have %v, want Mode2X", orch.CurrentMode())
	}
	sink.CycleMode()
	if orch.CurrentMode() != pipeline.Mode3X {
		t.Fatalf("CurrentMode after CycleMode: have %v, want Mode3X", orch.CurrentMode())
	}

	if ov.Visible() {
		t.Fatalf("overlay Visible at construction: have true, want false")
	}
	sink.ToggleOverlay()
	if !ov.Visible() {
		t.Fatalf("overlay Visible after ToggleOverlay: have false, want true")
	}
}
