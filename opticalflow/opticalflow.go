// Package opticalflow implements dense motion estimation between two
// captured frames: a block-matching search using luminance SAD with a
// three-step coarse-to-fine search. The search itself (algo.go) is a
// plain Go function over pixel buffers, without shared-memory tiling,
// that the driver/soft kernel runs directly. The HLSL kernel compiled
// for driver/d3d12 does not run the search: it writes a zero vector
// for every block.
package opticalflow

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/osfg-go/framegen/driver"
)

// KernelName is the name passed to driver.GPU.NewShaderCode to select
// this package's compute kernel. The soft backend resolves it via its
// kernel registry (see kernel_soft.go); the d3d12 backend compiles
// the HLSL source under the same name (see driver/d3d12/shader_windows.go).
const KernelName = "opticalflow"

// register numbers, shared between the soft kernel and the d3d12 HLSL
// text, matching the descriptor layout described by spec.md §4.4.
const (
	regConstants = 0 // b0
	regCurrent   = 0 // t0
	regPrevious  = 1 // t1
	regMotion    = 0 // u0
	regSADSum    = 1 // u1, scene-change accumulator: float64 sum + uint32 count
)

// sadBufSize must fit a float64 sum followed by a uint32 count.
const sadBufSize = 16

// Stats holds OpticalFlow's rolling statistics (spec.md §4.4
// Statistics, supplemented per SPEC_FULL.md §3 with scene-change
// detection from original_source's fsr_opticalflow.h).
type Stats struct {
	DispatchCount    int64
	LastDispatchTime time.Duration
	AvgDispatchTime  time.Duration
	// SceneChanged reports whether the most recent dispatch's mean
	// SAD exceeded SceneChangeThreshold (a supplemental signal the
	// orchestrator may use to skip interpolation for a cut).
	SceneChanged bool
	meanSAD      float64
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

// OpticalFlow owns the motion-field image, its constant buffer, and
// the shader-visible descriptor heap/table described by spec.md
// §4.4, plus the pointer-identity cache that decides whether the
// descriptor table needs rebuilding before a dispatch.
type OpticalFlow struct {
	gpu driver.GPU
	cfg Config
	log *slog.Logger

	mvW, mvH int
	motion   driver.Image
	first    bool

	cbuf  driver.Buffer
	heap  driver.DescHeap
	table driver.DescTable
	pipe  driver.Pipeline

	lastCurrent, lastPrevious driver.Image

	sadBuf driver.Buffer

	// SceneChangeThreshold, if > 0, is compared against the mean SAD
	// per block (normalized to [0,1] of the maximum possible 8-bit
	// luminance SAD over a block) to flag a scene cut.
	SceneChangeThreshold float64

	Stats Stats
}

// New creates an OpticalFlow instance for the given compute device
// and configuration.
func New(gpu driver.GPU, cfg Config, sceneChangeThreshold float64, log *slog.Logger) (*OpticalFlow, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BlockSize < 4 || cfg.BlockSize > 32 {
		return nil, fmt.Errorf("opticalflow: block size %d out of range [4,32]", cfg.BlockSize)
	}
	mvW, mvH := cfg.MVSize()

	motion, err := gpu.NewImage(driver.RG16i, driver.Dim2D{Width: mvW, Height: mvH}, driver.UShaderWrite|driver.UShaderRead)
	if err != nil {
		return nil, fmt.Errorf("opticalflow: motion field image: %w", err)
	}
	cbuf, err := gpu.NewBuffer(256, true, driver.UShaderConst)
	if err != nil {
		return nil, fmt.Errorf("opticalflow: constant buffer: %w", err)
	}
	sadBuf, err := gpu.NewBuffer(sadBufSize, true, driver.UShaderWrite)
	if err != nil {
		return nil, fmt.Errorf("opticalflow: scene-change accumulator buffer: %w", err)
	}
	heap, err := gpu.NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Nr: regConstants, Len: 1},
		{Type: driver.DTexture, Nr: regCurrent, Len: 1},
		{Type: driver.DTexture, Nr: regPrevious, Len: 1},
		{Type: driver.DImage, Nr: regMotion, Len: 1},
		{Type: driver.DBuffer, Nr: regSADSum, Len: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("opticalflow: descriptor heap: %w", err)
	}
	if err := heap.New(1); err != nil {
		return nil, fmt.Errorf("opticalflow: allocate descriptor heap: %w", err)
	}
	table, err := gpu.NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return nil, fmt.Errorf("opticalflow: descriptor table: %w", err)
	}
	code, err := gpu.NewShaderCode([]byte(KernelName))
	if err != nil {
		return nil, fmt.Errorf("opticalflow: shader code: %w", err)
	}
	pipe, err := gpu.NewPipeline(&driver.CompState{Func: driver.ShaderFunc{Code: code, Name: "CSMain"}, Desc: table})
	if err != nil {
		return nil, fmt.Errorf("opticalflow: pipeline: %w", err)
	}

	writeConstants(cbuf, cfg, mvW, mvH)
	heap.SetBuffer(0, regConstants, cbuf, 0, 24)
	heap.SetBuffer(0, regSADSum, sadBuf, 0, sadBufSize)

	return &OpticalFlow{
		gpu:                  gpu,
		cfg:                  cfg,
		log:                  log.With("component", "opticalflow"),
		mvW:                  mvW,
		mvH:                  mvH,
		motion:               motion,
		first:                true,
		cbuf:                 cbuf,
		heap:                 heap,
		table:                table,
		pipe:                 pipe,
		sadBuf:               sadBuf,
		SceneChangeThreshold: sceneChangeThreshold,
	}, nil
}

func writeConstants(cbuf driver.Buffer, cfg Config, mvW, mvH int) {
	b := cbuf.Bytes()
	if b == nil {
		return
	}
	putU32(b[0:4], uint32(cfg.Width))
	putU32(b[4:8], uint32(cfg.Height))
	putU32(b[8:12], uint32(mvW))
	putU32(b[12:16], uint32(mvH))
	putU32(b[16:20], uint32(cfg.BlockSize))
	putU32(b[20:24], uint32(cfg.SearchRadius))
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Motion returns the owned motion-field image, resting in
// StateShaderResource between dispatches.
func (of *OpticalFlow) Motion() driver.Image { return of.motion }

// MVSize returns the motion field's dimensions.
func (of *OpticalFlow) MVSize() (int, int) { return of.mvW, of.mvH }

// Dispatch records the optical-flow compute dispatch against cb,
// following spec.md §4.4's recording order: transition the motion
// field to UNORDERED_ACCESS (skipped on the very first dispatch, when
// the image is still in its creation state), rebuild the descriptor table
// only if either input pointer changed since the last dispatch, bind,
// dispatch (MV_W, MV_H, 1) groups, transition back to
// SHADER_RESOURCE.
func (of *OpticalFlow) Dispatch(ctx context.Context, cb driver.CmdBuffer, previous, current driver.Image) error {
	start := time.Now()

	cb.BeginBlit()
	if !of.first {
		cb.Transition([]driver.Transition{{Img: of.motion, Before: driver.StateShaderResource, After: driver.StateUnorderedAccess}})
	}
	cb.EndBlit()

	if current != of.lastCurrent || previous != of.lastPrevious {
		of.heap.SetImage(0, regCurrent, current)
		of.heap.SetImage(0, regPrevious, previous)
		of.heap.SetImage(0, regMotion, of.motion)
		of.lastCurrent, of.lastPrevious = current, previous
	}

	cb.BeginWork()
	cb.SetPipeline(of.pipe)
	cb.SetDescTable(of.table, []int{0})
	cb.Dispatch(of.mvW, of.mvH, 1)
	cb.EndWork()

	cb.BeginBlit()
	cb.Transition([]driver.Transition{{Img: of.motion, Before: driver.StateUnorderedAccess, After: driver.StateShaderResource}})
	cb.EndBlit()

	of.first = false
	of.Stats.record(time.Since(start))
	return nil
}

// ReadSceneStats decodes the scene-change accumulator buffer written
// by the most recently *completed* dispatch (i.e. after the caller's
// gpuctx.GpuContext.SubmitAndWait has returned) and updates Stats
// accordingly. It must not be called while a dispatch recorded against
// this instance is still in flight, since the accumulator's bytes are
// only meaningful once the kernel has actually run.
func (of *OpticalFlow) ReadSceneStats() {
	b := of.sadBuf.Bytes()
	if b == nil || len(b) < sadBufSize {
		return
	}
	sum := math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
	count := binary.LittleEndian.Uint32(b[8:12])
	if count == 0 {
		of.Stats.meanSAD = 0
		of.Stats.SceneChanged = false
		return
	}
	// Normalize against the maximum possible SAD for one block (every
	// pixel saturated to the full 8-bit luminance range), so the
	// threshold is a dimensionless fraction in [0,1] regardless of
	// block size.
	maxBlockSAD := 255.0 * float64(of.cfg.BlockSize) * float64(of.cfg.BlockSize)
	of.Stats.meanSAD = (sum / float64(count)) / maxBlockSAD
	of.Stats.SceneChanged = of.SceneChangeThreshold > 0 && of.Stats.meanSAD > of.SceneChangeThreshold
}

// MeanSAD returns the normalized mean per-block SAD from the last
// ReadSceneStats call.
func (of *OpticalFlow) MeanSAD() float64 { return of.Stats.meanSAD }

// Destroy releases OpticalFlow's owned GPU resources.
func (of *OpticalFlow) Destroy() {
	if of.pipe != nil {
		of.pipe.Destroy()
	}
	if of.table != nil {
		of.table.Destroy()
	}
	if of.heap != nil {
		of.heap.Destroy()
	}
	if of.cbuf != nil {
		of.cbuf.Destroy()
	}
	if of.sadBuf != nil {
		of.sadBuf.Destroy()
	}
	if of.motion != nil {
		of.motion.Destroy()
	}
}
