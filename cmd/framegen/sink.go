package main

import (
	"github.com/osfg-go/framegen/overlay"
	"github.com/osfg-go/framegen/pipeline"
)

// actionSink implements hotkey.ActionSink by delegating to the
// orchestrator and the overlay, neither of which owns the other.
type actionSink struct {
	orch *pipeline.Orchestrator
	ov   *overlay.Overlay
}

func (s *actionSink) ToggleFrameGen() { s.orch.ToggleFrameGen() }
func (s *actionSink) ToggleOverlay()  { s.ov.ToggleShow() }
func (s *actionSink) CycleMode()      { s.orch.CycleMode() }
