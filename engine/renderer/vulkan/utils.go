package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorFragmentation:        "VK_ERROR_FRAGMENTATION",
	vk.ErrorInvalidDeviceAddress: "VK_ERROR_INVALID_DEVICE_ADDRESS",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if s, ok := resultNames[result]; ok {
		return s
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// checkResult turns a failed call into an error naming the operation.
func checkResult(op string, result vk.Result) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	return fmt.Errorf("%s failed with %s", op, VulkanResultString(result))
}

func vulkanDescriptorType(t metadata.DescriptorType) vk.DescriptorType {
	switch t {
	case metadata.DescriptorTypeConstantBuffer:
		return vk.DescriptorTypeUniformBuffer
	case metadata.DescriptorTypeUnorderedAccess:
		return vk.DescriptorTypeStorageBuffer
	case metadata.DescriptorTypeSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeSampledImage
	}
}

// vulkanStageFlags maps a visibility mask. Ray tracing stages widen the mask
// to every stage.
func vulkanStageFlags(s metadata.ShaderStage) vk.ShaderStageFlags {
	if s&metadata.ShaderStageAllRayTracing != 0 {
		return vk.ShaderStageFlags(vk.ShaderStageAll)
	}
	var flags vk.ShaderStageFlagBits
	if s&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&metadata.ShaderStageGeometry != 0 {
		flags |= vk.ShaderStageGeometryBit
	}
	if s&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&metadata.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	if flags == 0 {
		return vk.ShaderStageFlags(vk.ShaderStageAll)
	}
	return vk.ShaderStageFlags(flags)
}

const endChar = '\x00'

// VulkanSafeString null-terminates s for the C API.
func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != endChar {
		return s + string(endChar)
	}
	return s
}
