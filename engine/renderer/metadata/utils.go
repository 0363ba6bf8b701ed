package metadata

import "math/bits"

// GetAligned rounds operand up to the next multiple of granularity, which
// must be a power of two.
func GetAligned(operand, granularity uint64) uint64 {
	val := (operand + (granularity - 1)) &^ (granularity - 1)
	return val
}

func IsAligned(operand, granularity uint64) bool {
	return operand&(granularity-1) == 0
}

func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// IterateBits returns the indices of the set bits of mask, lowest first.
func IterateBits(mask uint64) []uint32 {
	out := make([]uint32, 0, bits.OnesCount64(mask))
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		out = append(out, uint32(i))
		mask &= mask - 1
	}
	return out
}

// RangeMask returns count consecutive bits starting at offset.
func RangeMask(offset, count uint32) uint64 {
	if count == 0 {
		return 0
	}
	return ((uint64(1) << count) - 1) << offset
}
