package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/interop"
	"github.com/osfg-go/framegen/interpolation"
	"github.com/osfg-go/framegen/opticalflow"
	"github.com/osfg-go/framegen/pipeline"
)

// fakeIngester feeds solid-colored synthetic frames into an
// *interop.Interop through its fast image path, so successive ticks
// produce a changing Current/Previous pair without any real capture
// device. failAt lets a test force Ingest to fail on a specific
// 0-based tick instead of producing a frame.
type fakeIngester struct {
	gpu    driver.GPU
	ip     *interop.Interop
	w, h   int
	tick   int
	failAt map[int]error
}

func (f *fakeIngester) Ingest(cb driver.CmdBuffer, timeoutMs int) error {
	defer func() { f.tick++ }()
	if err, ok := f.failAt[f.tick]; ok {
		return err
	}
	shade := byte((f.tick*40+10)%200 + 20)
	img, err := f.gpu.NewImage(driver.BGRA8un, driver.Dim2D{Width: f.w, Height: f.h}, driver.UShaderRead|driver.UCopySrc)
	if err != nil {
		return err
	}
	defer img.Destroy()
	si := img.(*soft.Image)
	px := si.Pixels()
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = shade, shade, shade, 255
	}
	return f.ip.IngestImage(cb, img)
}

func (f *fakeIngester) CaptureStats() capture.Stats { return capture.Stats{} }

// fakePresenter records every Flip call and stops Run after exactly
// ticksAllowed calls to ProcessMessages, standing in for a window that
// closes after a fixed number of ticks.
type fakePresenter struct {
	flips        int
	calls        int
	ticksAllowed int
	flipErr      error
}

func (p *fakePresenter) Present(cb driver.CmdBuffer, src driver.Image) error { return nil }

func (p *fakePresenter) Flip(syncInterval int) error {
	if p.flipErr != nil {
		return p.flipErr
	}
	p.flips++
	return nil
}

func (p *fakePresenter) ProcessMessages() bool {
	p.calls++
	return p.calls <= p.ticksAllowed
}

func (p *fakePresenter) IsWindowOpen() bool { return p.calls <= p.ticksAllowed }

type harness struct {
	gc     *gpuctx.GpuContext
	ing    *fakeIngester
	ip     *interop.Interop
	flow   *opticalflow.OpticalFlow
	interp *interpolation.Interpolation
	pres   *fakePresenter
}

func newHarness(t *testing.T, w, h int) *harness {
	t.Helper()
	gc, err := gpuctx.New(&soft.Driver{}, 0, nil)
	if err != nil {
		t.Fatalf("gpuctx.New: %v", err)
	}
	t.Cleanup(gc.Close)

	ip, err := interop.New(gc.GPU(), interop.Config{Width: w, Height: h}, nil)
	if err != nil {
		t.Fatalf("interop.New: %v", err)
	}
	t.Cleanup(ip.Destroy)

	flow, err := opticalflow.New(gc.GPU(), opticalflow.Config{Width: w, Height: h, BlockSize: 4, SearchRadius: 2}, 1.0, nil)
	if err != nil {
		t.Fatalf("opticalflow.New: %v", err)
	}
	t.Cleanup(flow.Destroy)

	interp, err := interpolation.New(gc.GPU(), interpolation.Config{Width: w, Height: h, MotionScale: 1.0 / 16}, nil)
	if err != nil {
		t.Fatalf("interpolation.New: %v", err)
	}
	t.Cleanup(interp.Destroy)

	return &harness{
		gc:     gc,
		ing:    &fakeIngester{gpu: gc.GPU(), ip: ip, w: w, h: h, failAt: map[int]error{}},
		ip:     ip,
		flow:   flow,
		interp: interp,
		pres:   &fakePresenter{},
	}
}

func (h *harness) newOrchestrator(t *testing.T, cfg pipeline.Config) *pipeline.Orchestrator {
	t.Helper()
	o, err := pipeline.New(h.gc, h.ing, h.ip, h.flow, h.interp, h.pres, cfg, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return o
}

func TestDisabledFrameGenProducesOneFlipPerTick(t *testing.T) {
	h := newHarness(t, 8, 8)
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1, InitialEnabled: false, InitialMode: pipeline.Mode2X})

	const ticks = 5
	h.pres.ticksAllowed = ticks
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.pres.flips != ticks {
		t.Fatalf("flips:\nhave %d\nwant %d", h.pres.flips, ticks)
	}
}

func TestFrameGenWaitsForTwoIngestedFramesBeforeInterleaving(t *testing.T) {
	h := newHarness(t, 8, 8)
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1, InitialEnabled: true, InitialMode: pipeline.Mode3X})

	const ticks = 5
	h.pres.ticksAllowed = ticks
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Tick 1 has only one ingested frame (no Previous yet), so it
	// always takes the single-flip path regardless of the enabled
	// flag; ticks 2-5 interleave at the configured 3X multiplier.
	want := 1 + 4*3
	if h.pres.flips != want {
		t.Fatalf("flips:\nhave %d\nwant %d", h.pres.flips, want)
	}
}

func TestCycleModeChangesMultiplierMidStream(t *testing.T) {
	h := newHarness(t, 8, 8)
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1, InitialEnabled: true, InitialMode: pipeline.Mode2X})

	h.pres.ticksAllowed = 30
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run (2X phase): %v", err)
	}
	firstPhase := h.pres.flips

	o.CycleMode() // Mode2X -> Mode3X
	o.CycleMode() // Mode3X -> Mode4X
	if o.CurrentMode() != pipeline.Mode4X {
		t.Fatalf("CurrentMode after two CycleMode calls:\nhave %v\nwant %v", o.CurrentMode(), pipeline.Mode4X)
	}

	h.pres.calls = 0
	h.pres.ticksAllowed = 30
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run (4X phase): %v", err)
	}
	secondPhase := h.pres.flips - firstPhase

	// First tick overall never interleaves (only one ingested
	// frame); every tick after that interleaves at the multiplier
	// active when that tick ran.
	wantFirst := 1 + 29*2
	wantSecond := 30 * 4
	if firstPhase != wantFirst {
		t.Fatalf("flips in 2X phase:\nhave %d\nwant %d", firstPhase, wantFirst)
	}
	if secondPhase != wantSecond {
		t.Fatalf("flips in 4X phase:\nhave %d\nwant %d", secondPhase, wantSecond)
	}
}

func TestToggleFrameGenFallsBackToSingleFlip(t *testing.T) {
	h := newHarness(t, 8, 8)
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1, InitialEnabled: true, InitialMode: pipeline.Mode2X})

	h.pres.ticksAllowed = 2
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run (warmup): %v", err)
	}
	before := h.pres.flips

	o.ToggleFrameGen()
	if o.FrameGenEnabled() {
		t.Fatalf("FrameGenEnabled after toggle: have true, want false")
	}

	h.pres.calls = 0
	h.pres.ticksAllowed = 1
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run (after toggle): %v", err)
	}
	if h.pres.flips-before != 1 {
		t.Fatalf("flips after disabling frame-gen:\nhave %d\nwant 1", h.pres.flips-before)
	}
}

func TestCaptureAccessLostStopsRun(t *testing.T) {
	h := newHarness(t, 8, 8)
	h.ing.failAt[2] = capture.ErrAccessLost
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1})
	h.pres.ticksAllowed = 100

	err := o.Run(context.Background())
	if err == nil {
		t.Fatalf("Run: have nil error, want one wrapping capture.ErrAccessLost")
	}
	if !errors.Is(err, capture.ErrAccessLost) {
		t.Fatalf("Run error:\nhave %v\nwant wrapping capture.ErrAccessLost", err)
	}
}

func TestCaptureTimeoutSkipsTickWithoutStopping(t *testing.T) {
	h := newHarness(t, 8, 8)
	h.ing.failAt[1] = capture.ErrTimedOut
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1})
	h.pres.ticksAllowed = 3

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := o.Stats()
	if st.TicksTimedOut != 1 {
		t.Fatalf("TicksTimedOut:\nhave %d\nwant 1", st.TicksTimedOut)
	}
	if st.TicksRun != 2 {
		t.Fatalf("TicksRun:\nhave %d\nwant 2", st.TicksRun)
	}
}

func TestIngestFailureDropsTickWithoutStopping(t *testing.T) {
	h := newHarness(t, 8, 8)
	h.ing.failAt[1] = &interop.IngestFailed{Err: errors.New("synthetic map failure")}
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1})
	h.pres.ticksAllowed = 3

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := o.Stats()
	if st.TicksDropped != 1 {
		t.Fatalf("TicksDropped:\nhave %d\nwant 1", st.TicksDropped)
	}
	if st.TicksRun != 2 {
		t.Fatalf("TicksRun:\nhave %d\nwant 2", st.TicksRun)
	}
}

func TestPresentDeviceLostStopsRun(t *testing.T) {
	h := newHarness(t, 8, 8)
	h.pres.ticksAllowed = 100
	h.pres.flipErr = errors.New("synthetic device removed")
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1})

	err := o.Run(context.Background())
	if !errors.Is(err, pipeline.ErrPresentDeviceLost) {
		t.Fatalf("Run error:\nhave %v\nwant wrapping pipeline.ErrPresentDeviceLost", err)
	}
}

func TestWindowCloseStopsRunCleanly(t *testing.T) {
	h := newHarness(t, 8, 8)
	h.pres.ticksAllowed = 0
	o := h.newOrchestrator(t, pipeline.Config{SyncInterval: 1})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run with closed window: have %v, want nil", err)
	}
	if h.pres.flips != 0 {
		t.Fatalf("flips with window closed from the start:\nhave %d\nwant 0", h.pres.flips)
	}
}
