package main

import (
	"github.com/osfg-go/framegen/config"
	"github.com/osfg-go/framegen/pipeline"
)

// initialPipelineMode maps the configured multiplier to pipeline.Mode.
// config.ModeDisabled has no pipeline.Mode counterpart: whether
// generation runs at all is the orchestrator's separate enabled flag.
func initialPipelineMode(m config.FrameGenMode) pipeline.Mode {
	switch m {
	case config.Mode3X:
		return pipeline.Mode3X
	case config.Mode4X:
		return pipeline.Mode4X
	default:
		return pipeline.Mode2X
	}
}
