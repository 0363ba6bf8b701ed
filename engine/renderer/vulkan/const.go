package vulkan

const VULKAN_ENGINE_NAME = "gpucore"

const VULKAN_VALIDATION_LAYER = "VK_LAYER_KHRONOS_validation"

/**
 * @brief Fence waits are split into slices of this many nanoseconds so a
 * cancelled context is noticed.
 */
const VULKAN_FENCE_WAIT_SLICE_NS uint64 = 10_000_000

/**
 * @brief Textures are sub-allocated with at least this alignment so linear
 * and optimal resources never share a page.
 */
const VULKAN_TEXTURE_ALIGNMENT uint64 = 4096

/** @brief Size in bytes of one push constant slot. */
const VULKAN_PUSH_CONSTANT_SIZE uint32 = 4
