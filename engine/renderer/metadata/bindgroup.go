package metadata

type BindingType uint8

const (
	BindingTypeUniformBuffer BindingType = iota
	BindingTypeStorageBuffer
	BindingTypeSampler
	BindingTypeSampledTexture
)

func (b BindingType) String() string {
	switch b {
	case BindingTypeUniformBuffer:
		return "uniform-buffer"
	case BindingTypeStorageBuffer:
		return "storage-buffer"
	case BindingTypeSampler:
		return "sampler"
	default:
		return "sampled-texture"
	}
}

type BindGroupLayout struct {
	Mask  uint64
	Types [MaxBindingsPerGroup]BindingType
}

/**
 * @brief A binding slot. Resource is a buffer handle for buffer bindings and a
 * texture handle for sampled textures; Sampler is the backend sampler object.
 */
type Binding struct {
	Resource uint32
	Offset   uint64
	Size     uint64
	Sampler  any
}

type BindGroup struct {
	ID       uint32
	Layout   BindGroupLayout
	Bindings [MaxBindingsPerGroup]Binding
	Native   any
}

/** @brief A binding with its resource handle resolved to the backend object. */
type ResolvedBinding struct {
	Binding uint32
	Type    BindingType
	Native  any
	Offset  uint64
	Size    uint64
	Sampler any
}
