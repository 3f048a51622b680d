package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
)

/**
 * @brief Handles of a device created by the host application. The binder
 * only records into the compute queue family.
 */
type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	ComputeQueueIndex uint32
	ComputeQueue      vk.Queue

	/** @brief Largest push constant block the device accepts, in bytes. */
	MaxPushConstantsSize uint32
	memoryProperties     vk.PhysicalDeviceMemoryProperties
}

func NewVulkanDevice(physical vk.PhysicalDevice, logical vk.Device, computeQueueIndex uint32) *VulkanDevice {
	d := &VulkanDevice{
		PhysicalDevice:    physical,
		LogicalDevice:     logical,
		ComputeQueueIndex: computeQueueIndex,
	}

	var queue vk.Queue
	vk.GetDeviceQueue(logical, computeQueueIndex, 0, &queue)
	d.ComputeQueue = queue

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physical, &properties)
	properties.Deref()
	properties.Limits.Deref()
	d.MaxPushConstantsSize = properties.Limits.MaxPushConstantsSize

	vk.GetPhysicalDeviceMemoryProperties(physical, &d.memoryProperties)
	d.memoryProperties.Deref()

	core.LogDebug("vulkan device ready: compute queue family %d, %d bytes of push constants", computeQueueIndex, d.MaxPushConstantsSize)
	return d
}

func (d *VulkanDevice) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	for i := uint32(0); i < d.memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		d.memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(d.memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
