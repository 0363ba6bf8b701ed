package metadata

/** @brief Usage bits shared by buffers and textures. */
type Usage uint32

const (
	UsageNone        Usage = 0x0
	UsageMapRead     Usage = 0x1
	UsageMapWrite    Usage = 0x2
	UsageTransferSrc Usage = 0x4
	UsageTransferDst Usage = 0x8
	UsageIndex       Usage = 0x10
	UsageVertex      Usage = 0x20
	UsageUniform     Usage = 0x40
	UsageStorage     Usage = 0x80
	/** @brief Texture only. */
	UsageSampled Usage = 0x100
	/** @brief Texture only. */
	UsageOutputAttachment Usage = 0x200
	/** @brief Texture only. */
	UsagePresent Usage = 0x400
)

const (
	BufferUsages  = UsageMapRead | UsageMapWrite | UsageTransferSrc | UsageTransferDst | UsageIndex | UsageVertex | UsageUniform | UsageStorage
	TextureUsages = UsageTransferSrc | UsageTransferDst | UsageSampled | UsageStorage | UsageOutputAttachment | UsagePresent
	MapUsages     = UsageMapRead | UsageMapWrite
)

func (u Usage) Has(bits Usage) bool {
	return u&bits != 0
}

type ResourceKind uint8

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindTexture
)

func (k ResourceKind) String() string {
	if k == ResourceKindTexture {
		return "texture"
	}
	return "buffer"
}

/** @brief Placement class of a resource. */
type HeapType uint8

const (
	/** @brief Device local, not CPU visible. */
	HeapTypeDefault HeapType = iota
	/** @brief CPU writable, GPU readable. */
	HeapTypeUpload
	/** @brief GPU writable, CPU readable. */
	HeapTypeReadback
)

func (h HeapType) IsHostVisible() bool {
	return h == HeapTypeUpload || h == HeapTypeReadback
}

/** @brief Backend-agnostic resource state, a bitmask modeled after explicit APIs. */
type NativeState uint32

const (
	NativeStateCommon                  NativeState = 0x0
	NativeStateVertexAndConstantBuffer NativeState = 0x1
	NativeStateIndexBuffer             NativeState = 0x2
	NativeStateRenderTarget            NativeState = 0x4
	NativeStateUnorderedAccess         NativeState = 0x8
	NativeStateDepthWrite              NativeState = 0x10
	NativeStateDepthRead               NativeState = 0x20
	NativeStateNonPixelShaderResource  NativeState = 0x40
	NativeStatePixelShaderResource     NativeState = 0x80
	NativeStateIndirectArgument        NativeState = 0x200
	NativeStateCopyDest                NativeState = 0x400
	NativeStateCopySource              NativeState = 0x800

	NativeStateShaderResource = NativeStateNonPixelShaderResource | NativeStatePixelShaderResource
	NativeStateGenericRead    = NativeStateVertexAndConstantBuffer | NativeStateIndexBuffer |
		NativeStateNonPixelShaderResource | NativeStatePixelShaderResource |
		NativeStateIndirectArgument | NativeStateCopySource
	NativeStatePresent = NativeStateCommon
)

/** @brief A resource state transition to issue before the operation needing AfterUsage. */
type Barrier struct {
	ResourceID  uint32
	Kind        ResourceKind
	Format      TextureFormat
	Native      any
	BeforeUsage Usage
	AfterUsage  Usage
	StateBefore NativeState
	StateAfter  NativeState
}
