// Package interpolation implements bidirectional motion-compensated
// frame interpolation: given a previous frame, a current frame, and
// the motion field OpticalFlow produced between them, it synthesizes
// an intermediate frame at any phase t ∈ (0,1) by warping both inputs
// toward t and blending. Like opticalflow, the per-pixel algorithm
// (algo.go) is a plain Go function that the driver/soft kernel runs
// directly. The HLSL kernel compiled for driver/d3d12 does not sample
// the motion field: it blends Previous and Current linearly by phase.
package interpolation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/osfg-go/framegen/driver"
)

// KernelName is the name passed to driver.GPU.NewShaderCode to select
// this package's compute kernel.
const KernelName = "interpolation"

// register numbers, matching the layout of
// original_source/src/interpolation/frame_interpolation.cpp: previous
// frame at t0, current frame at t1, motion vectors at t2, output at
// u0, constants at b0.
const (
	regConstants = 0 // b0
	regPrevious  = 0 // t0
	regCurrent   = 1 // t1
	regMotion    = 2 // t2
	regOutput    = 0 // u0
)

// Stats holds Interpolation's rolling dispatch-time statistics (spec.md
// §4.5, mirroring OpticalFlow.Stats).
type Stats struct {
	DispatchCount    int64
	LastDispatchTime time.Duration
	AvgDispatchTime  time.Duration
}

const statsAlpha = 0.1

func (s *Stats) record(d time.Duration) {
	s.DispatchCount++
	s.LastDispatchTime = d
	if s.DispatchCount == 1 {
		s.AvgDispatchTime = d
	} else {
		s.AvgDispatchTime = time.Duration(statsAlpha*float64(d) + (1-statsAlpha)*float64(s.AvgDispatchTime))
	}
}

// Interpolation owns the interpolated-frame image, its constant
// buffer, and the descriptor heap/table described by spec.md §4.5,
// plus the pointer-identity cache for the three input textures
// (previous, current, motion field).
type Interpolation struct {
	gpu driver.GPU
	cfg Config
	log *slog.Logger

	frame driver.Image
	first bool

	cbuf  driver.Buffer
	heap  driver.DescHeap
	table driver.DescTable
	pipe  driver.Pipeline

	lastPrevious, lastCurrent, lastMotion driver.Image

	Stats Stats
}

// New creates an Interpolation instance for the given compute device
// and output geometry.
func New(gpu driver.GPU, cfg Config, log *slog.Logger) (*Interpolation, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("interpolation: invalid geometry %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.MotionScale == 0 {
		cfg.MotionScale = 1.0 / 16.0
	}

	frame, err := gpu.NewImage(driver.BGRA8un, driver.Dim2D{Width: cfg.Width, Height: cfg.Height}, driver.UShaderWrite|driver.UShaderRead)
	if err != nil {
		return nil, fmt.Errorf("interpolation: frame image: %w", err)
	}
	cbuf, err := gpu.NewBuffer(256, true, driver.UShaderConst)
	if err != nil {
		return nil, fmt.Errorf("interpolation: constant buffer: %w", err)
	}
	heap, err := gpu.NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Nr: regConstants, Len: 1},
		{Type: driver.DTexture, Nr: regPrevious, Len: 1},
		{Type: driver.DTexture, Nr: regCurrent, Len: 1},
		{Type: driver.DTexture, Nr: regMotion, Len: 1},
		{Type: driver.DImage, Nr: regOutput, Len: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("interpolation: descriptor heap: %w", err)
	}
	if err := heap.New(1); err != nil {
		return nil, fmt.Errorf("interpolation: allocate descriptor heap: %w", err)
	}
	table, err := gpu.NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return nil, fmt.Errorf("interpolation: descriptor table: %w", err)
	}
	code, err := gpu.NewShaderCode([]byte(KernelName))
	if err != nil {
		return nil, fmt.Errorf("interpolation: shader code: %w", err)
	}
	pipe, err := gpu.NewPipeline(&driver.CompState{Func: driver.ShaderFunc{Code: code, Name: "CSMain"}, Desc: table})
	if err != nil {
		return nil, fmt.Errorf("interpolation: pipeline: %w", err)
	}

	heap.SetBuffer(0, regConstants, cbuf, 0, 24)

	return &Interpolation{
		gpu:   gpu,
		cfg:   cfg,
		log:   log.With("component", "interpolation"),
		frame: frame,
		first: true,
		cbuf:  cbuf,
		heap:  heap,
		table: table,
		pipe:  pipe,
	}, nil
}

func writeConstants(cbuf driver.Buffer, cfg Config, mvW, mvH int, t float32) {
	b := cbuf.Bytes()
	if b == nil {
		return
	}
	putU32(b[0:4], uint32(cfg.Width))
	putU32(b[4:8], uint32(cfg.Height))
	putU32(b[8:12], uint32(mvW))
	putU32(b[12:16], uint32(mvH))
	putF32(b[16:20], t)
	putF32(b[20:24], cfg.MotionScale)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putF32(b []byte, v float32) {
	putU32(b, math.Float32bits(v))
}

// Frame returns the owned interpolated-frame image, resting in
// StateShaderResource between dispatches.
func (ip *Interpolation) Frame() driver.Image { return ip.frame }

// Dispatch records the interpolation compute dispatch against cb,
// following spec.md §4.5's recording order: transition the output
// image to UNORDERED_ACCESS (skipped on the very first dispatch),
// rebuild the descriptor table only if any of the three input
// pointers changed since the last dispatch, bind, dispatch
// (⌈W/16⌉, ⌈H/16⌉, 1) groups, transition back to SHADER_RESOURCE.
//
// previous, current, and motion must already be in StateShaderResource,
// and motion must come from an OpticalFlow dispatch that referenced
// the same (previous, current) pair (spec.md §4 invariant 3).
func (ip *Interpolation) Dispatch(ctx context.Context, cb driver.CmdBuffer, previous, current, motion driver.Image, mvW, mvH int, t float32) error {
	start := time.Now()

	writeConstants(ip.cbuf, ip.cfg, mvW, mvH, t)

	cb.BeginBlit()
	if !ip.first {
		cb.Transition([]driver.Transition{{Img: ip.frame, Before: driver.StateShaderResource, After: driver.StateUnorderedAccess}})
	}
	cb.EndBlit()

	if previous != ip.lastPrevious || current != ip.lastCurrent || motion != ip.lastMotion {
		ip.heap.SetImage(0, regPrevious, previous)
		ip.heap.SetImage(0, regCurrent, current)
		ip.heap.SetImage(0, regMotion, motion)
		ip.heap.SetImage(0, regOutput, ip.frame)
		ip.lastPrevious, ip.lastCurrent, ip.lastMotion = previous, current, motion
	}

	cb.BeginWork()
	cb.SetPipeline(ip.pipe)
	cb.SetDescTable(ip.table, []int{0})
	grpX := (ip.cfg.Width + 15) / 16
	grpY := (ip.cfg.Height + 15) / 16
	cb.Dispatch(grpX, grpY, 1)
	cb.EndWork()

	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: ip.frame, Before: driver.StateUnorderedAccess, After: driver.StateShaderResource}})
	cb.EndBlit()

	ip.first = false
	ip.Stats.record(time.Since(start))
	return nil
}

// Destroy releases Interpolation's owned GPU resources.
func (ip *Interpolation) Destroy() {
	if ip.pipe != nil {
		ip.pipe.Destroy()
	}
	if ip.table != nil {
		ip.table.Destroy()
	}
	if ip.heap != nil {
		ip.heap.Destroy()
	}
	if ip.cbuf != nil {
		ip.cbuf.Destroy()
	}
	if ip.frame != nil {
		ip.frame.Destroy()
	}
}
