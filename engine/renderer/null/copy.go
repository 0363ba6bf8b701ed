package null

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

func (b *Backend) CopyBufferToBuffer(src *resource.Resource, srcOffset uint64, dst *resource.Resource, dstOffset, size uint64) error {
	from := src.Native.(*Resource)
	to := dst.Native.(*Resource)
	if srcOffset+size > uint64(len(from.data)) || dstOffset+size > uint64(len(to.data)) {
		return errors.Wrapf(core.ErrNativeCall, "copy of %d bytes from '%s'+%d to '%s'+%d is out of bounds",
			size, src.Label, srcOffset, dst.Label, dstOffset)
	}

	copy(to.data[dstOffset:dstOffset+size], from.data[srcOffset:srcOffset+size])
	b.record(Call{Kind: CallCopyBufferToBuffer, Resource: dst, Offset: dstOffset, Value: uint32(size)})
	return nil
}

func (b *Backend) CopyBufferToTexture(src *resource.Resource, srcOffset uint64, rowPitch uint32, dst *resource.Resource, region metadata.TextureRegion) error {
	from := src.Native.(*Resource)
	to := dst.Native.(*Resource)
	if err := copyRows(from, srcOffset, rowPitch, to, region, true); err != nil {
		return errors.Wrapf(err, "copy from '%s' to '%s'", src.Label, dst.Label)
	}
	b.record(Call{Kind: CallCopyBufferToTexture, Resource: dst, Offset: srcOffset, Value: rowPitch})
	return nil
}

// CopyTextureToBuffer has no direct native equivalent: a temporary read
// target is attached to the texture, read from and destroyed again.
func (b *Backend) CopyTextureToBuffer(src *resource.Resource, region metadata.TextureRegion, dst *resource.Resource, dstOffset uint64, rowPitch uint32) error {
	from := src.Native.(*Resource)
	to := dst.Native.(*Resource)

	b.temporaries++
	b.record(Call{Kind: CallCreateReadTarget, Resource: src})
	defer func() {
		b.temporaries--
		b.record(Call{Kind: CallDestroyReadTarget, Resource: src})
	}()

	if err := copyRows(to, dstOffset, rowPitch, from, region, false); err != nil {
		return errors.Wrapf(err, "copy from '%s' to '%s'", src.Label, dst.Label)
	}
	b.record(Call{Kind: CallReadPixels, Resource: dst, Offset: dstOffset, Value: rowPitch})
	return nil
}

// copyRows moves a region between a linear buffer and a tightly packed
// texture, in the direction given by toTexture.
func copyRows(buffer *Resource, offset uint64, rowPitch uint32, texture *Resource, region metadata.TextureRegion, toTexture bool) error {
	if region.Level != 0 {
		return errors.Wrapf(core.ErrNativeCall, "mip level %d is not simulated", region.Level)
	}
	depth := region.Depth
	if depth == 0 {
		depth = 1
	}
	pixel := uint64(texture.format.PixelSize())
	rowBytes := uint64(region.Width) * pixel
	if uint64(rowPitch) < rowBytes {
		return errors.Wrapf(core.ErrNativeCall, "row pitch %d is smaller than a row of %d bytes", rowPitch, rowBytes)
	}
	if region.X+region.Width > texture.width || region.Y+region.Height > texture.height || region.Z+depth > texture.depth {
		return errors.Wrapf(core.ErrNativeCall, "region %+v is outside a %dx%dx%d texture", region, texture.width, texture.height, texture.depth)
	}
	if region.Width == 0 || region.Height == 0 {
		return nil
	}
	last := offset + uint64(rowPitch)*(uint64(region.Height)*uint64(depth)-1) + rowBytes
	if last > uint64(len(buffer.data)) {
		return errors.Wrapf(core.ErrNativeCall, "buffer of %d bytes is too small, %d needed", len(buffer.data), last)
	}

	texRowPitch := uint64(texture.width) * pixel
	for z := uint64(0); z < uint64(depth); z++ {
		for y := uint64(0); y < uint64(region.Height); y++ {
			b := offset + (z*uint64(region.Height)+y)*uint64(rowPitch)
			t := ((uint64(region.Z)+z)*uint64(texture.height)+uint64(region.Y)+y)*texRowPitch + uint64(region.X)*pixel
			if toTexture {
				copy(texture.data[t:t+rowBytes], buffer.data[b:b+rowBytes])
			} else {
				copy(buffer.data[b:b+rowBytes], texture.data[t:t+rowBytes])
			}
		}
	}
	return nil
}
