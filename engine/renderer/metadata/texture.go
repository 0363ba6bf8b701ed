package metadata

type TextureFormat uint32

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatR8G8B8A8Unorm
	TextureFormatR8G8B8A8Uint
	TextureFormatB8G8R8A8Unorm
	TextureFormatD32FloatS8Uint
)

func (f TextureFormat) HasDepth() bool {
	return f == TextureFormatD32FloatS8Uint
}

func (f TextureFormat) HasStencil() bool {
	return f == TextureFormatD32FloatS8Uint
}

func (f TextureFormat) HasDepthOrStencil() bool {
	return f.HasDepth() || f.HasStencil()
}

// PixelSize is the size in bytes of one texel as laid out in a buffer.
func (f TextureFormat) PixelSize() uint32 {
	switch f {
	case TextureFormatR8G8B8A8Unorm, TextureFormatR8G8B8A8Uint, TextureFormatB8G8R8A8Unorm:
		return 4
	case TextureFormatD32FloatS8Uint:
		return 8
	default:
		return 0
	}
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatR8G8B8A8Unorm:
		return "R8G8B8A8Unorm"
	case TextureFormatR8G8B8A8Uint:
		return "R8G8B8A8Uint"
	case TextureFormatB8G8R8A8Unorm:
		return "B8G8R8A8Unorm"
	case TextureFormatD32FloatS8Uint:
		return "D32FloatS8Uint"
	default:
		return "Undefined"
	}
}

/** @brief A box inside one mip level of a texture. */
type TextureRegion struct {
	X      uint32
	Y      uint32
	Z      uint32
	Width  uint32
	Height uint32
	Depth  uint32
	Level  uint32
}
