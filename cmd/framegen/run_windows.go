//go:build windows

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/config"
	"github.com/osfg-go/framegen/driver"
	_ "github.com/osfg-go/framegen/driver/d3d12"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/hotkey"
	"github.com/osfg-go/framegen/interop"
	"github.com/osfg-go/framegen/interpolation"
	"github.com/osfg-go/framegen/opticalflow"
	"github.com/osfg-go/framegen/overlay"
	"github.com/osfg-go/framegen/pipeline"
	"github.com/osfg-go/framegen/presenter"
	"github.com/osfg-go/framegen/transfer"
)

const computeDriverName = "d3d12"

func init() {
	runFramegen = runFramegenWindows
}

// runFramegenWindows wires every collaborator config.Load(path)
// describes and drives pipeline.Orchestrator.Run to completion,
// returning spec.md §6's process exit code.
func runFramegenWindows(ctx context.Context, path string) (int, error) {
	s, err := config.Load(path)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	if err := s.Validate(); err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}

	log, closeLog, err := newLogger(s.Advanced)
	if err != nil {
		return 1, err
	}
	defer closeLog()

	computeAdapter := int(s.GPU.Primary)
	captureAdapter := int(s.GPU.Primary)
	if s.GPU.Mode == config.GPUDual {
		captureAdapter = int(s.GPU.Secondary)
	}

	capturer, err := capture.New(capture.Config{DisplayIndex: int(s.Capture.Monitor), AdapterIndex: captureAdapter})
	if err != nil {
		return 1, fmt.Errorf("framegen: capture: %w", err)
	}
	defer capturer.Close()

	var computeDrv driver.Driver
	for _, d := range driver.Drivers() {
		if d.Name() == computeDriverName {
			computeDrv = d
			break
		}
	}
	if computeDrv == nil {
		return 1, fmt.Errorf("framegen: no %q driver registered", computeDriverName)
	}

	gc, err := gpuctx.New(computeDrv, computeAdapter, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer gc.Close()

	var gcCapture *gpuctx.GpuContext
	var xfer *transfer.Transfer
	if s.GPU.Mode == config.GPUDual {
		gcCapture, xfer, err = openCrossAdapterTransfer(computeDrv, captureAdapter, gc, capturer, log)
		if err != nil {
			return 1, fmt.Errorf("framegen: %w", err)
		}
		defer gcCapture.Close()
		defer xfer.Destroy()
	}

	ip, err := interop.New(gc.GPU(), interop.Config{Width: capturer.Width(), Height: capturer.Height()}, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer ip.Destroy()

	flow, err := opticalflow.New(gc.GPU(), opticalflow.Config{
		Width:        capturer.Width(),
		Height:       capturer.Height(),
		BlockSize:    int(s.OpticalFlow.BlockSize),
		SearchRadius: int(s.OpticalFlow.SearchRadius),
	}, s.OpticalFlow.SceneChangeThreshold, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer flow.Destroy()

	interp, err := interpolation.New(gc.GPU(), interpolation.Config{
		Width:       capturer.Width(),
		Height:      capturer.Height(),
		MotionScale: 1.0 / 16,
	}, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer interp.Destroy()

	pres, ok := gc.GPU().(driver.Presenter)
	if !ok {
		return 1, fmt.Errorf("framegen: %s does not support presentation", computeDrv.Name())
	}
	p, err := presenter.New(pres, presenter.Config{
		Width:       capturer.Width(),
		Height:      capturer.Height(),
		BufferCount: int(s.Advanced.FrameBufferCount),
		Borderless:  s.Presentation.Borderless,
		Title:       "framegen",
	}, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer p.Destroy()

	ov, err := overlay.New(gc.GPU(), overlay.Config{
		Position:  overlay.Position(s.Overlay.Position),
		Scale:     s.Overlay.Scale,
		Show:      s.Overlay.Show,
		FPS:       s.Overlay.FPS,
		FrameTime: s.Overlay.FrameTime,
		GPUUsage:  s.Overlay.GPUUsage,
	}, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer ov.Destroy()
	p.SetOverlay(ov)

	var ingester pipeline.Ingester
	if s.GPU.Mode == config.GPUDual {
		ti, err := pipeline.NewTransferIngester(capturer, gcCapture, xfer, ip, capturer.Width(), capturer.Height(), log)
		if err != nil {
			return 1, fmt.Errorf("framegen: %w", err)
		}
		defer ti.Close()
		ingester = ti
	} else {
		ingester = &pipeline.CaptureIngester{Cap: capturer, Interop: ip}
	}

	syncInterval := 0
	if s.Presentation.VSync {
		syncInterval = 1
	}
	baseFrameMs := 0.0
	if s.FrameGen.TargetFramerate > 0 {
		baseFrameMs = 1000 / s.FrameGen.TargetFramerate
	}

	orch, err := pipeline.New(gc, ingester, ip, flow, interp, p, pipeline.Config{
		SyncInterval:   syncInterval,
		BaseFrameMs:    baseFrameMs,
		InitialMode:    initialPipelineMode(s.FrameGen.Mode),
		InitialEnabled: s.FrameGen.Enabled && s.FrameGen.Mode != config.ModeDisabled,
	}, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}

	sink := &actionSink{orch: orch, ov: ov}
	bindings := []hotkey.Binding{
		{VK: s.Hotkeys.ToggleFrameGen, RequireAlt: s.Hotkeys.RequireAlt, Action: hotkey.ActionToggleFrameGen},
		{VK: s.Hotkeys.ToggleOverlay, RequireAlt: s.Hotkeys.RequireAlt, Action: hotkey.ActionToggleOverlay},
		{VK: s.Hotkeys.CycleMode, RequireAlt: s.Hotkeys.RequireAlt, Action: hotkey.ActionCycleMode},
	}
	hk, err := hotkey.New(p.WindowHandle(), bindings, sink, log)
	if err != nil {
		return 1, fmt.Errorf("framegen: %w", err)
	}
	defer hk.Close()

	orch.SetTickObserver(newOverlaySampler(gc, ov, capturer, baseFrameMs, log))

	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil
		}
		return 2, fmt.Errorf("framegen: %w", err)
	}
	return 0, nil
}

// overlaySampler resamples the pipeline's rolling Stats at most four
// times a second and pushes a fresh overlay frame, rather than
// re-rendering on every tick observer call.
type overlaySampler struct {
	gc          *gpuctx.GpuContext
	ov          *overlay.Overlay
	capturer    capture.Capturer
	baseFrameMs float64
	log         *slog.Logger

	last       time.Time
	lastFrames int64
}

func newOverlaySampler(gc *gpuctx.GpuContext, ov *overlay.Overlay, capturer capture.Capturer, baseFrameMs float64, log *slog.Logger) func(pipeline.Stats) {
	if baseFrameMs <= 0 {
		baseFrameMs = 16.667
	}
	s := &overlaySampler{gc: gc, ov: ov, capturer: capturer, baseFrameMs: baseFrameMs, log: log}
	return s.sample
}

func (s *overlaySampler) sample(st pipeline.Stats) {
	now := time.Now()
	if s.last.IsZero() {
		s.last, s.lastFrames = now, st.FramesPresented
		return
	}
	elapsed := now.Sub(s.last)
	if elapsed < 250*time.Millisecond {
		return
	}
	framesDelta := st.FramesPresented - s.lastFrames
	fps := float64(framesDelta) / elapsed.Seconds()
	frameMs := 0.0
	if fps > 0 {
		frameMs = 1000 / fps
	}

	capStats := s.capturer.Stats()
	gpuUsage := 100 * float64(capStats.AvgLatency) / float64(time.Duration(s.baseFrameMs*float64(time.Millisecond)))
	if gpuUsage > 100 {
		gpuUsage = 100
	}

	if err := s.ov.RenderAndSubmit(s.gc.GPU(), overlay.Stats{FPS: fps, FrameTimeMs: frameMs, GPUUsagePercent: gpuUsage}); err != nil && s.log != nil {
		s.log.Warn("overlay render failed", "error", err)
	}
	s.last, s.lastFrames = now, st.FramesPresented
}

// openCrossAdapterTransfer opens a GpuContext on the capture adapter
// and builds the transfer.Transfer that moves frames from it onto the
// already-open compute device. Both are kept alive for the lifetime of
// Run: pipeline.TransferIngester drives tr on every tick, so unlike a
// one-shot capability probe this connection is exercised continuously.
func openCrossAdapterTransfer(drv driver.Driver, captureAdapter int, gc *gpuctx.GpuContext, capturer capture.Capturer, log *slog.Logger) (*gpuctx.GpuContext, *transfer.Transfer, error) {
	gcCapture, err := gpuctx.New(drv, captureAdapter, log)
	if err != nil {
		return nil, nil, fmt.Errorf("cross-adapter transfer: open capture-side device: %w", err)
	}

	tr, err := transfer.New(gcCapture.GPU(), gc.GPU(), transfer.Config{Width: capturer.Width(), Height: capturer.Height()}, log)
	if err != nil {
		gcCapture.Close()
		return nil, nil, fmt.Errorf("cross-adapter transfer: %w", err)
	}
	log.Info("cross-adapter transfer method selected", "method", tr.Method())
	return gcCapture, tr, nil
}
