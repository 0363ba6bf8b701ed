package metadata

const (
	MaxPushConstants    uint32 = 32
	MaxVertexInputs     uint32 = 16
	MaxVertexAttributes uint32 = 16
	MaxColorAttachments uint32 = 4
	MaxBindGroups       uint32 = 4
	MaxBindingsPerGroup uint32 = 16
)

/**
 * @brief Shader stages, used as indices into per-stage arrays.
 */
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
	ShaderStageCompute
	ShaderStageCount
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

/** @brief A set of shader stages. */
type ShaderStageBit uint32

const (
	ShaderStageBitVertex   ShaderStageBit = 1 << ShaderStageVertex
	ShaderStageBitFragment ShaderStageBit = 1 << ShaderStageFragment
	ShaderStageBitCompute  ShaderStageBit = 1 << ShaderStageCompute
	ShaderStageBitAll                     = ShaderStageBitVertex | ShaderStageBitFragment | ShaderStageBitCompute
)

// IterateStages lists the stages present in bits, in stage order.
func IterateStages(bits ShaderStageBit) []ShaderStage {
	stages := make([]ShaderStage, 0, ShaderStageCount)
	for s := ShaderStage(0); s < ShaderStageCount; s++ {
		if bits&(1<<s) != 0 {
			stages = append(stages, s)
		}
	}
	return stages
}

type PushConstantType uint8

const (
	PushConstantTypeInt PushConstantType = iota
	PushConstantTypeUInt
	PushConstantTypeFloat
)

/** @brief Which push constant slots a stage reads and how each is typed. */
type PushConstantInfo struct {
	Mask  uint64
	Types [MaxPushConstants]PushConstantType
}

type VertexFormat uint32

const (
	VertexFormatFloatR32G32B32A32 VertexFormat = iota
	VertexFormatFloatR32G32B32
	VertexFormatFloatR32G32
	VertexFormatFloatR32
)

func (f VertexFormat) NumComponents() uint32 {
	switch f {
	case VertexFormatFloatR32G32B32A32:
		return 4
	case VertexFormatFloatR32G32B32:
		return 3
	case VertexFormatFloatR32G32:
		return 2
	default:
		return 1
	}
}

type InputStepMode uint8

const (
	InputStepModeVertex InputStepMode = iota
	InputStepModeInstance
)

type VertexInput struct {
	Stride   uint32
	StepMode InputStepMode
}

type VertexAttribute struct {
	Location uint32
	/** @brief The vertex buffer slot the attribute reads from. */
	Input  uint32
	Offset uint32
	Format VertexFormat
}

/**
 * @brief Vertex layout of a render pipeline. InputsSetMask has a bit for every
 * vertex buffer slot the layout reads.
 */
type InputState struct {
	InputsSetMask uint64
	Inputs        [MaxVertexInputs]VertexInput
	Attributes    []VertexAttribute
}

func (s *InputState) AttributesUsingInput(slot uint32) []VertexAttribute {
	var out []VertexAttribute
	for _, a := range s.Attributes {
		if a.Input == slot {
			out = append(out, a)
		}
	}
	return out
}

type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

func (f IndexFormat) Size() uint64 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

type PrimitiveTopology uint8

const (
	PrimitiveTopologyPointList PrimitiveTopology = iota
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyTriangleList
	PrimitiveTopologyTriangleStrip
)

type PipelineKind uint8

const (
	PipelineKindRender PipelineKind = iota
	PipelineKindCompute
)

/**
 * @brief A compiled pipeline as seen by the executor. Native carries the
 * backend object produced by the pipeline builder.
 */
type Pipeline struct {
	ID            uint32
	Label         string
	Kind          PipelineKind
	PushConstants [ShaderStageCount]PushConstantInfo
	/** @brief Render pipelines only. */
	InputState  *InputState
	IndexFormat IndexFormat
	Topology    PrimitiveTopology
	Native      any
}

func (p *Pipeline) PushConstantsFor(stage ShaderStage) *PushConstantInfo {
	return &p.PushConstants[stage]
}
