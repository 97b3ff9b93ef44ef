package driver

// GPU is the main interface to an underlying driver implementation.
// It is used to create other types and to execute commands.
// A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// Commit submits a batch of command buffers for execution on
	// the GPU's single direct queue, in the order given.
	// Commands recorded in one command buffer are guaranteed to
	// complete before the next one in the batch begins; this is
	// the only ordering guarantee the pipeline relies on, since
	// resource-state transitions (not extra fences) express
	// cross-stage synchronization within a tick.
	// The result is sent to ch once every command buffer in cb
	// has completed execution on the GPU. Command buffers in cb
	// cannot be recorded into again until then.
	Commit(cb []CmdBuffer, ch chan<- error)

	// NewCmdBuffer creates a new command buffer.
	NewCmdBuffer() (CmdBuffer, error)

	// NewShaderCode creates a new compute shader binary from a
	// compiled bytecode blob (or, for software backends, from a
	// reference Go implementation keyed by name).
	NewShaderCode(data []byte) (ShaderCode, error)

	// NewDescHeap creates a new descriptor heap.
	NewDescHeap(ds []Descriptor) (DescHeap, error)

	// NewDescTable creates a new descriptor table.
	NewDescTable(dh []DescHeap) (DescTable, error)

	// NewPipeline creates a new compute pipeline from state.
	NewPipeline(state *CompState) (Pipeline, error)

	// NewBuffer creates a new buffer.
	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)

	// NewImage creates a new 2D image.
	NewImage(pf PixelFmt, size Dim2D, usg Usage) (Image, error)

	// Limits returns the implementation limits and capability
	// bits. They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external memory
// that is not managed by GC, so Destroy must be called explicitly to
// ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// CmdBuffer is the interface that defines a command buffer.
// Commands are recorded into command buffers and later committed to
// the GPU for execution. The pipeline only ever records compute
// ("work") and copy ("blit") blocks; there is no render-pass support,
// since nothing in this system rasterizes triangles. Usage:
//
//	1. call Begin
//	2. to dispatch compute: BeginWork, SetPipeline, SetDescTable,
//	   Dispatch (repeat as needed), EndWork
//	3. to copy/transition resources: BeginBlit, Copy*/Transition
//	   (repeat as needed), EndBlit
//	4. call End and, if it succeeds, GPU.Commit
//
// Begin*/End* blocks must not be nested, and each must be closed
// before the next Begin* call and prior to the final End call.
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording. It must be
	// called before any command is recorded, and again after the
	// command buffer is executed or Reset.
	Begin() error

	// BeginWork begins a compute work block. Dispatch commands
	// issued within the block may execute in parallel on the GPU.
	BeginWork()

	// EndWork ends the current compute work block.
	EndWork()

	// BeginBlit begins a data-transfer block. Copy/Fill/Transition
	// commands issued within the block may execute in parallel.
	BeginBlit()

	// EndBlit ends the current data-transfer block.
	EndBlit()

	// SetPipeline sets the compute pipeline.
	SetPipeline(pl Pipeline)

	// SetDescTable sets the descriptor table range for the bound
	// compute pipeline. heapCopy selects, for each descriptor
	// heap in table, which of its New(n) copies to bind.
	SetDescTable(table DescTable, heapCopy []int)

	// Dispatch dispatches compute thread groups.
	// It must only be called within a compute work block.
	Dispatch(grpCountX, grpCountY, grpCountZ int)

	// CopyBuffer copies data between buffers.
	// It must only be called within a data-transfer block.
	CopyBuffer(param *BufferCopy)

	// CopyImage copies data between images.
	// It must only be called within a data-transfer block.
	CopyImage(param *ImageCopy)

	// CopyBufToImg copies data from a buffer to an image.
	// It must only be called within a data-transfer block.
	CopyBufToImg(param *BufImgCopy)

	// CopyImgToBuf copies data from an image to a buffer.
	// It must only be called within a data-transfer block.
	CopyImgToBuf(param *BufImgCopy)

	// Transition inserts resource-state transitions.
	// It must only be called within a data-transfer block.
	Transition(t []Transition)

	// End ends command recording and prepares the command buffer
	// for execution. New recordings are not allowed until the
	// command buffer is executed or reset. Upon failure, the
	// command buffer is reset.
	End() error

	// Reset discards all recorded commands from the command
	// buffer. It fails if the GPU has not yet completed the
	// command buffer's last submission.
	Reset() error
}

// BufferCopy describes the parameters of a copy command that copies
// data from one buffer to another.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// ImageCopy describes the parameters of a copy command that copies
// data from one image to another, at mip level 0.
type ImageCopy struct {
	From    Image
	FromOff Off2D
	To      Image
	ToOff   Off2D
	Size    Dim2D
}

// BufImgCopy describes the parameters of a copy command that copies
// data between a buffer and an image.
type BufImgCopy struct {
	Buf Buffer
	// BufOff is the byte offset of the first row in Buf.
	BufOff int64
	// RowPitch is the byte stride between consecutive rows in Buf.
	// It must be a multiple of the backend's row-pitch alignment
	// (256 bytes for the D3D12 backend).
	RowPitch int64
	Img      Image
	ImgOff   Off2D
	Size     Dim2D
}

// ResourceState is a GPU resource's usage label, constraining the
// operations legal to perform on it. Transitions between states are
// explicit barriers recorded with CmdBuffer.Transition.
type ResourceState int

// Resource states.
const (
	// StateCommon is the state of a resource that is not being
	// used by the GPU; images may also rest here between frames
	// of backends that do not otherwise require a specific state.
	StateCommon ResourceState = iota
	// StateCopySrc is required to read a resource as the source
	// of a copy command.
	StateCopySrc
	// StateCopyDst is required to write a resource as the
	// destination of a copy command.
	StateCopyDst
	// StateUnorderedAccess is required for a shader to read and
	// write a resource (RWTexture2D/RWBuffer).
	StateUnorderedAccess
	// StateShaderResource is required for a shader to read a
	// resource as a read-only texture/buffer (SRV). This is the
	// resting state of interop, motion-field, and interpolated
	// textures between dispatches.
	StateShaderResource
	// StatePresent is required of a swapchain back buffer at the
	// moment Swapchain.Present is called.
	StatePresent
)

// String names a ResourceState the way spec documents name it.
func (s ResourceState) String() string {
	switch s {
	case StateCommon:
		return "COMMON"
	case StateCopySrc:
		return "COPY_SOURCE"
	case StateCopyDst:
		return "COPY_DEST"
	case StateUnorderedAccess:
		return "UNORDERED_ACCESS"
	case StateShaderResource:
		return "SHADER_RESOURCE"
	case StatePresent:
		return "PRESENT"
	default:
		return "UNKNOWN"
	}
}

// Transition represents a resource-state transition on an image.
type Transition struct {
	Img   Image
	Before ResourceState
	After  ResourceState
}

// ShaderCode is the interface that defines a compute shader binary.
type ShaderCode interface {
	Destroyer
}

// ShaderFunc specifies the entry point of a shader binary.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Constant buffer (CBV).
	DConstant DescType = iota
	// Sampled/read-only texture (SRV).
	DTexture
	// Read/write texture (UAV).
	DImage
	// Read/write buffer (UAV).
	DBuffer
)

// Descriptor describes one binding slot for use in compute shaders.
type Descriptor struct {
	Type DescType
	// Nr is the shader register (e.g. t0, u0, b0) this descriptor
	// binds to.
	Nr int
	// Len is the number of consecutive descriptors this slot
	// represents (array bindings); 1 for a scalar binding.
	Len int
}

// DescHeap is the interface that defines a set of descriptors for
// use by compute shaders.
type DescHeap interface {
	Destroyer

	// New creates enough storage for n copies of each descriptor.
	// All copies from a previous call to New are invalidated
	// unless n equals the current Count, in which case it is a
	// no-op. New(0) frees all storage.
	New(n int) error

	// SetBuffer updates the buffer range referred to by the given
	// descriptor of the given heap copy. The descriptor must be
	// of type DBuffer or DConstant.
	SetBuffer(cpy, nr int, buf Buffer, off, size int64)

	// SetImage updates the image referred to by the given
	// descriptor of the given heap copy. The descriptor must be
	// of type DImage or DTexture.
	SetImage(cpy, nr int, img Image)

	// Count returns the number of heap copies created by New.
	Count() int
}

// DescTable is the interface that defines the bindings between a
// number of descriptor heaps and a compute pipeline.
type DescTable interface {
	Destroyer
}

// CompState defines the state of a compute pipeline: a single
// compute shader and the descriptor table describing the resources
// it accesses.
type CompState struct {
	Func ShaderFunc
	Desc DescTable
}

// Pipeline is the interface that defines a compiled compute pipeline.
type Pipeline interface {
	Destroyer
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Image.
const (
	// The resource can be read in shaders (SRV).
	UShaderRead Usage = 1 << iota
	// The resource can be read and written in shaders (UAV).
	UShaderWrite
	// The resource can provide constant data for shaders.
	// Valid only for Buffer.
	UShaderConst
	// The resource is the target of a copy operation.
	UCopyDst
	// The resource is the source of a copy operation.
	UCopySrc
	// The resource can back a swapchain back buffer.
	// Valid only for Image.
	UPresent
)

// Buffer is the interface that defines a GPU buffer. The size of the
// buffer is fixed; a larger buffer requires a new allocation.
type Buffer interface {
	Destroyer

	// Visible returns whether the buffer is host visible.
	// Non-visible memory cannot be accessed by the CPU.
	Visible() bool

	// Bytes returns a slice of length Cap referring to the
	// underlying data, valid for the lifetime of the buffer.
	// It returns nil if the buffer is not host visible.
	Bytes() []byte

	// Cap returns the capacity of the buffer in bytes, which may
	// be greater than the size requested at creation. This value
	// is immutable.
	Cap() int64
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats used by the pipeline.
const (
	// BGRA8un is the default capture/present/interpolation format.
	BGRA8un PixelFmt = iota
	// RGBA8un is an alternate color format.
	RGBA8un
	// RG16i is a signed 16-bit 2D integer format, used for the
	// motion field (one vector per texel).
	RG16i
)

// Dim2D is a two-dimensional size.
type Dim2D struct {
	Width, Height int
}

// Off2D is a two-dimensional offset.
type Off2D struct {
	X, Y int
}

// Image is the interface that defines a GPU 2D image.
// Direct CPU access to image memory is not provided on backends
// whose images are not host visible; such backends require a
// staging Buffer for CPU<->GPU data movement.
type Image interface {
	Destroyer

	// Size returns the image's dimensions.
	Size() Dim2D

	// Format returns the image's pixel format.
	Format() PixelFmt
}

// Limits describes implementation limits and capability bits.
// These may vary across drivers and devices.
type Limits struct {
	// MaxImage2D is the maximum width/height of a 2D image.
	MaxImage2D int
	// MaxDispatch is the maximum thread-group count per
	// dimension of a single Dispatch call.
	MaxDispatch [3]int
	// CrossAdapterRowMajor reports whether this GPU supports
	// placed resources in a cross-adapter row-major heap shared
	// with another device (transfer.SharedHeap requires this on
	// both the source and destination adapters).
	CrossAdapterRowMajor bool
}
