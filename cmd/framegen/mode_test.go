package main

import (
	"testing"

	"github.com/osfg-go/framegen/config"
	"github.com/osfg-go/framegen/pipeline"
)

func TestInitialPipelineMode(t *testing.T) {
	cases := []struct {
		in   config.FrameGenMode
		want pipeline.Mode
	}{
		{config.ModeDisabled, pipeline.Mode2X},
		{config.Mode2X, pipeline.Mode2X},
		{config.Mode3X, pipeline.Mode3X},
		{config.Mode4X, pipeline.Mode4X},
	}
	for _, c := range cases {
		if got := initialPipelineMode(c.in); got != c.want {
			t.Fatalf("initialPipelineMode(%v): have %v, want %v", c.in, got, c.want)
		}
	}
}
