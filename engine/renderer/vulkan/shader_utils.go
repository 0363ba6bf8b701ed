package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/core"
)

const spirvMagic uint32 = 0x07230203

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// NewShaderStage wraps SPIR-V words into a module and the stage info
// pointing at entryPoint.
func NewShaderStage(context *VulkanContext, code []uint32, entryPoint string, shaderStageFlag vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	if len(code) == 0 || code[0] != spirvMagic {
		return nil, errors.Wrap(core.ErrNativeCall, "shader code is not SPIR-V")
	}
	if entryPoint == "" {
		entryPoint = "main"
	}

	createInfo := shaderModuleInfo(code)
	stage := &VulkanShaderStage{}
	if res := vk.CreateShaderModule(context.LogicalDevice(), &createInfo, context.Allocator, &stage.Handle); res != vk.Success {
		return nil, VulkanError(res, "vkCreateShaderModule")
	}

	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageFlag,
		Module: stage.Handle,
		PName:  VulkanSafeString(entryPoint),
	}
	return stage, nil
}

// CodeSize is in bytes, code is in 32-bit words.
func shaderModuleInfo(code []uint32) vk.ShaderModuleCreateInfo {
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
}

// Modules are only needed while pipelines are created.
func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.LogicalDevice(), s.Handle, context.Allocator)
		s.Handle = nil
	}
}
