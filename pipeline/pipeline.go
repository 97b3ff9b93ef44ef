// Package pipeline implements the per-tick orchestration algorithm
// spec.md §4.8 describes: acquire a captured frame, ingest it, and
// either interleave M-1 generated frames between it and the next real
// present or present the real frame alone, all against a single
// direct queue per device with host-blocking fence waits between every
// submission (spec.md §5).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/interop"
	"github.com/osfg-go/framegen/interpolation"
	"github.com/osfg-go/framegen/opticalflow"
)

// ErrPresentDeviceLost is returned by Run when a flip reports the
// swap chain unusable (spec.md §7 PresentDeviceLost); the loop stops.
var ErrPresentDeviceLost = errors.New("pipeline: swap-chain device lost")

// maxPaceSleep bounds each pacing sleep so a clock jump or a missed
// deadline never blocks the loop for longer than this in one call.
const maxPaceSleep = 20 * time.Millisecond

// defaultAcquireTimeoutMs and defaultBaseFrameMs match spec.md §4.8/§5's
// stated defaults (a 16ms poll compatible with 60Hz capture, and a
// 60Hz base cadence for pacing when it hasn't been measured).
const (
	defaultAcquireTimeoutMs = 16
	defaultBaseFrameMs      = 16.667
)

// Mode selects the frame-generation multiplier, matching spec.md §6's
// [FrameGen] Mode enum minus Disabled: whether generation runs at all
// is Orchestrator's separate enabled flag (see the Open Question note
// in DESIGN.md), so Mode only ever names a multiplier.
type Mode int32

const (
	Mode2X Mode = iota
	Mode3X
	Mode4X
)

// Multiplier returns the number of presents (real + generated) per
// base capture this mode selects.
func (m Mode) Multiplier() int {
	switch m {
	case Mode3X:
		return 3
	case Mode4X:
		return 4
	default:
		return 2
	}
}

func (m Mode) String() string {
	switch m {
	case Mode3X:
		return "3X"
	case Mode4X:
		return "4X"
	default:
		return "2X"
	}
}

// Next cycles Mode2X → Mode3X → Mode4X → Mode2X, the order the
// CycleMode hotkey advances through.
func (m Mode) Next() Mode { return (m + 1) % 3 }

// Ingester is the orchestrator's view of frame acquisition: acquire
// the next captured frame (blocking up to timeoutMs) and record its
// copy into interop's write slot on cb. CaptureIngester (Windows-only)
// satisfies this against a real capture.Capturer; tests substitute a
// fake that ingests synthetic pixel data directly through
// interop.Ingest/IngestImage, exercising the same tick logic a
// platform build would run.
type Ingester interface {
	// Ingest returns capture.ErrTimedOut for an ordinary miss,
	// capture.ErrAccessLost for a fatal duplication-session loss, an
	// *interop.IngestFailed for a per-tick recoverable ingest failure,
	// or any other error as a fatal, unclassified failure.
	Ingest(cb driver.CmdBuffer, timeoutMs int) error
	// CaptureStats reports the underlying Capturer's rolling
	// acquire statistics, for the overlay collaborator.
	CaptureStats() capture.Stats
}

// Presenter is the subset of *presenter.Presenter the orchestrator
// needs, narrowed to an interface so tests can substitute a fake
// window/swap-chain pair without a real platform window.
type Presenter interface {
	Present(cb driver.CmdBuffer, src driver.Image) error
	Flip(syncInterval int) error
	ProcessMessages() bool
	IsWindowOpen() bool
}

// Stats holds the orchestrator's rolling per-tick outcome counters,
// read by the overlay collaborator once per tick (spec.md §4.8
// [SUPPLEMENT]: sampled at a single well-defined point to avoid
// flicker, per original_source's stats_overlay.h).
type Stats struct {
	TicksRun        int64
	TicksTimedOut   int64
	TicksDropped    int64
	FramesPresented int64
}

func (s *Stats) recordTick()    { s.TicksRun++ }
func (s *Stats) recordTimeout() { s.TicksTimedOut++ }
func (s *Stats) recordDropped() { s.TicksDropped++ }
func (s *Stats) recordFlip()    { s.FramesPresented++ }

// settings is the tick-start snapshot of the mutable, hotkey-driven
// configuration spec.md §5 says the orchestrator must read only at a
// well-defined point rather than mid-tick.
type settings struct {
	frameGenEnabled bool
	multiplier      int
}

// Config configures a new Orchestrator.
type Config struct {
	// AcquireTimeoutMs is the per-tick capture acquire timeout.
	// Defaults to 16ms.
	AcquireTimeoutMs int
	// SyncInterval is passed to Presenter.Flip on every present.
	SyncInterval int
	// BaseFrameMs is the pacing cadence's denominator. Defaults to
	// 16.667 (60Hz).
	BaseFrameMs float64
	// InitialMode and InitialEnabled seed the hotkey-controlled state.
	InitialMode    Mode
	InitialEnabled bool
}

// Orchestrator runs the per-tick capture/ingest/interpolate/present
// algorithm on a single host goroutine (spec.md §4.8, §5).
type Orchestrator struct {
	gc      *gpuctx.GpuContext
	ingest  Ingester
	interop *interop.Interop
	flow    *opticalflow.OpticalFlow
	interp  *interpolation.Interpolation
	pres    Presenter
	log     *slog.Logger

	acquireTimeoutMs int
	syncInterval     int
	baseFrameMs      float64

	enabled atomic.Bool
	mode    atomic.Int32

	stats Stats

	onTick func(Stats)
}

// New builds an Orchestrator over already-constructed components. All
// of gc, ingest, ip, flow, interp, and pres must share (directly or,
// for the capture-side device, indirectly through Ingester) the same
// tick's ordering discipline; New does not itself open any devices.
func New(gc *gpuctx.GpuContext, ingest Ingester, ip *interop.Interop, flow *opticalflow.OpticalFlow, interp *interpolation.Interpolation, pres Presenter, cfg Config, log *slog.Logger) (*Orchestrator, error) {
	if log == nil {
		log = slog.Default()
	}
	if gc == nil || ingest == nil || ip == nil || flow == nil || interp == nil || pres == nil {
		return nil, fmt.Errorf("pipeline: New requires non-nil gc, ingest, interop, opticalflow, interpolation, and presenter")
	}
	timeout := cfg.AcquireTimeoutMs
	if timeout <= 0 {
		timeout = defaultAcquireTimeoutMs
	}
	baseFrameMs := cfg.BaseFrameMs
	if baseFrameMs <= 0 {
		baseFrameMs = defaultBaseFrameMs
	}

	o := &Orchestrator{
		gc:               gc,
		ingest:           ingest,
		interop:          ip,
		flow:             flow,
		interp:           interp,
		pres:             pres,
		log:              log.With("component", "pipeline"),
		acquireTimeoutMs: timeout,
		syncInterval:     cfg.SyncInterval,
		baseFrameMs:      baseFrameMs,
	}
	o.enabled.Store(cfg.InitialEnabled)
	o.mode.Store(int32(cfg.InitialMode))
	return o, nil
}

// ToggleFrameGen flips the master frame-generation enable flag. It
// implements hotkey.ActionSink's ToggleFrameGen action.
func (o *Orchestrator) ToggleFrameGen() { o.enabled.Store(!o.enabled.Load()) }

// CycleMode advances the multiplier Mode2X → Mode3X → Mode4X → Mode2X.
// It implements hotkey.ActionSink's CycleMode action.
func (o *Orchestrator) CycleMode() { o.mode.Store(int32(Mode(o.mode.Load()).Next())) }

// FrameGenEnabled reports the current master enable flag.
func (o *Orchestrator) FrameGenEnabled() bool { return o.enabled.Load() }

// CurrentMode reports the current multiplier mode.
func (o *Orchestrator) CurrentMode() Mode { return Mode(o.mode.Load()) }

// Stats returns a snapshot of the orchestrator's rolling per-tick
// counters, safe to call between ticks (the only time the caller and
// the tick loop are not both touching it, per spec.md §5's
// single-threaded scheduling model).
func (o *Orchestrator) Stats() Stats { return o.stats }

// SetTickObserver installs fn to be called with a Stats snapshot at
// the end of every completed tick, from the same goroutine that runs
// the tick loop (never concurrently with it), so the overlay
// collaborator can resample FPS without racing Stats' plain counters.
// A nil fn disables the callback.
func (o *Orchestrator) SetTickObserver(fn func(Stats)) { o.onTick = fn }

func (o *Orchestrator) snapshotSettings() settings {
	return settings{
		frameGenEnabled: o.enabled.Load(),
		multiplier:      Mode(o.mode.Load()).Multiplier(),
	}
}

// Run drives the tick loop until the window closes, a context
// cancellation, or a fatal error (spec.md §4.8 Failure semantics). A
// nil return means the window closed normally.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !o.pres.ProcessMessages() {
			return nil
		}
		if err := o.tick(ctx); err != nil {
			return err
		}
	}
}

// tick runs one iteration of spec.md §4.8's per-tick algorithm. A nil
// return means either the tick completed a present or it was skipped
// for a recoverable, per-tick reason (timeout, ingest failure,
// dispatch failure); a non-nil return is fatal and stops Run's loop.
func (o *Orchestrator) tick(ctx context.Context) error {
	tickStart := time.Now()
	set := o.snapshotSettings()

	if err := o.ingest.Ingest(o.gc.CmdBuffer(), o.acquireTimeoutMs); err != nil {
		return o.classifyIngestError(err)
	}
	if err := o.gc.SubmitAndWait(ctx); err != nil {
		return fmt.Errorf("pipeline: ingest submit: %w", err)
	}
	if err := o.gc.ResetRecording(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	curr := o.interop.Current()
	prev := o.interop.Previous()
	useFrameGen := set.frameGenEnabled && set.multiplier >= 2 && o.interop.IngestedCount() >= 2

	if !useFrameGen {
		if err := o.presentAndFlip(ctx, curr); err != nil {
			return err
		}
		o.interop.Rotate()
		o.stats.recordTick()
		o.observeTick()
		return nil
	}

	cb := o.gc.CmdBuffer()
	if err := o.flow.Dispatch(ctx, cb, prev, curr); err != nil {
		o.stats.recordDropped()
		return nil
	}
	if err := o.gc.SubmitAndWait(ctx); err != nil {
		return fmt.Errorf("pipeline: submit optical flow: %w", err)
	}
	o.flow.ReadSceneStats()
	if err := o.gc.ResetRecording(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	// A detected scene change makes the just-computed motion field
	// meaningless for interpolation (there is no coherent motion
	// across a cut), so fall back to presenting the real frame alone
	// rather than blending garbage in between.
	if o.flow.Stats.SceneChanged {
		if err := o.presentAndFlip(ctx, curr); err != nil {
			return err
		}
		o.interop.Rotate()
		o.stats.recordTick()
		o.observeTick()
		return nil
	}

	cb = o.gc.CmdBuffer()
	mvW, mvH := o.flow.MVSize()
	m := set.multiplier

	for i := 1; i < m; i++ {
		t := float32(i) / float32(m)
		if err := o.interp.Dispatch(ctx, cb, prev, curr, o.flow.Motion(), mvW, mvH, t); err != nil {
			o.stats.recordDropped()
			return nil
		}
		if err := o.pres.Present(cb, o.interp.Frame()); err != nil {
			return fmt.Errorf("pipeline: present interpolated frame: %w", err)
		}
		if err := o.gc.SubmitAndWait(ctx); err != nil {
			return fmt.Errorf("pipeline: submit interpolated frame: %w", err)
		}
		if err := o.pres.Flip(o.syncInterval); err != nil {
			return fmt.Errorf("%w: %v", ErrPresentDeviceLost, err)
		}
		o.stats.recordFlip()
		if err := o.gc.ResetRecording(); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		deadline := tickStart.Add(time.Duration(float64(i) * o.baseFrameMs / float64(m) * float64(time.Millisecond)))
		paceUntil(deadline)
		cb = o.gc.CmdBuffer()
	}

	if err := o.presentAndFlip(ctx, curr); err != nil {
		return err
	}
	o.interop.Rotate()
	o.stats.recordTick()
	o.observeTick()
	return nil
}

// observeTick invokes the tick observer, if one is installed.
func (o *Orchestrator) observeTick() {
	if o.onTick != nil {
		o.onTick(o.stats)
	}
}

// presentAndFlip records a present of src into the currently open
// command buffer, submits and waits, then flips, following the tail
// of every branch of spec.md §4.8's per-tick pseudocode.
func (o *Orchestrator) presentAndFlip(ctx context.Context, src driver.Image) error {
	cb := o.gc.CmdBuffer()
	if err := o.pres.Present(cb, src); err != nil {
		return fmt.Errorf("pipeline: present: %w", err)
	}
	if err := o.gc.SubmitAndWait(ctx); err != nil {
		return fmt.Errorf("pipeline: submit: %w", err)
	}
	if err := o.pres.Flip(o.syncInterval); err != nil {
		return fmt.Errorf("%w: %v", ErrPresentDeviceLost, err)
	}
	o.stats.recordFlip()
	if err := o.gc.ResetRecording(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// classifyIngestError maps Ingester.Ingest's error into one of
// spec.md §7's per-tick recoverable outcomes (nil return) or a fatal
// one that stops Run's loop (non-nil return).
func (o *Orchestrator) classifyIngestError(err error) error {
	if errors.Is(err, capture.ErrTimedOut) {
		o.stats.recordTimeout()
		time.Sleep(time.Millisecond)
		return nil
	}
	if errors.Is(err, capture.ErrAccessLost) {
		return fmt.Errorf("pipeline: %w", err)
	}
	var ingestFailed *interop.IngestFailed
	if errors.As(err, &ingestFailed) {
		o.stats.recordDropped()
		return nil
	}
	var captureFailed *capture.FailedError
	if errors.As(err, &captureFailed) {
		return fmt.Errorf("pipeline: %w", err)
	}
	return fmt.Errorf("pipeline: ingest: %w", err)
}

// paceUntil sleeps, in chunks bounded by maxPaceSleep, until deadline
// has elapsed (spec.md §4.8's pace_until).
func paceUntil(deadline time.Time) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		sleep := remaining
		if sleep > maxPaceSleep {
			sleep = maxPaceSleep
		}
		time.Sleep(sleep)
	}
}
