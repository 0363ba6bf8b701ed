package memory

//go:generate mockgen -source=device.go -destination=mock_device_test.go -package=memory

// Handle is a native device memory object.
type Handle any

type PropertyFlags uint32

// Values match VkMemoryPropertyFlagBits.
const (
	PropertyDeviceLocal PropertyFlags = 1 << iota
	PropertyHostVisible
	PropertyHostCoherent
	PropertyHostCached
)

func (f PropertyFlags) Has(bits PropertyFlags) bool {
	return f&bits == bits
}

type MemoryType struct {
	Flags     PropertyFlags
	HeapIndex uint32
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

/** @brief Memory requirements of a native object. MemoryTypeBits of 0 allows any type. */
type Requirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// Device is the native side of the allocator.
type Device interface {
	MemoryProperties() ([]MemoryType, []MemoryHeap)
	AllocateMemory(size uint64, typeIndex uint32) (Handle, error)
	FreeMemory(memory Handle)
	MapMemory(memory Handle, size uint64) ([]byte, error)
}
