package vulkan

import (
	"fmt"

	"github.com/google/uuid"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/**
 * @brief The pipeline layout of a root signature. Descriptor sets keep
 * their root index as set number, root descriptors and root constants share
 * one push constant block.
 */
type VulkanPipelineLayout struct {
	/** @brief The internal pipeline layout handle. */
	Handle        vk.PipelineLayout
	RootSignature *program.RootSignature
	PushConstants program.PushConstantLayout
}

type VulkanPipelineLayoutCache struct {
	device    *VulkanDevice
	allocator *vk.AllocationCallbacks
	locks     *VulkanLockPool
	heap      *VulkanDescriptorHeap

	layouts map[uuid.UUID]*VulkanPipelineLayout
}

func NewVulkanPipelineLayoutCache(device *VulkanDevice, allocator *vk.AllocationCallbacks, locks *VulkanLockPool, heap *VulkanDescriptorHeap) *VulkanPipelineLayoutCache {
	return &VulkanPipelineLayoutCache{
		device:    device,
		allocator: allocator,
		locks:     locks,
		heap:      heap,
		layouts:   make(map[uuid.UUID]*VulkanPipelineLayout),
	}
}

func (c *VulkanPipelineLayoutCache) Get(rs *program.RootSignature) (*VulkanPipelineLayout, error) {
	var out *VulkanPipelineLayout
	err := c.locks.SafeCall(PipelineManagement, func() error {
		if l, ok := c.layouts[rs.ID]; ok {
			out = l
		}
		return nil
	})
	if err != nil || out != nil {
		return out, err
	}

	setLayouts := make([]vk.DescriptorSetLayout, rs.DescriptorSetCount())
	for i := range setLayouts {
		l, err := c.heap.SetLayout(rs.DescriptorSetLayout(i))
		if err != nil {
			return nil, err
		}
		setLayouts[i] = l
	}

	pushConstants := rs.PushConstantLayout()
	if pushConstants.Size > c.device.MaxPushConstantsSize {
		return nil, fmt.Errorf("root signature %s needs %d bytes of push constants, device allows %d: %w", rs.ID, pushConstants.Size, c.device.MaxPushConstantsSize, core.ErrInvalidBinding)
	}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if pushConstants.Size > 0 {
		createInfo.PushConstantRangeCount = 1
		createInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll),
			Offset:     0,
			Size:       pushConstants.Size,
		}}
	}

	err = c.locks.SafeCall(PipelineManagement, func() error {
		if l, ok := c.layouts[rs.ID]; ok {
			out = l
			return nil
		}
		var handle vk.PipelineLayout
		res := vk.CreatePipelineLayout(c.device.LogicalDevice, &createInfo, c.allocator, &handle)
		if err := checkResult("vkCreatePipelineLayout", res); err != nil {
			return err
		}
		out = &VulkanPipelineLayout{
			Handle:        handle,
			RootSignature: rs,
			PushConstants: pushConstants,
		}
		c.layouts[rs.ID] = out
		core.LogDebug("pipeline layout created for root signature %s: %d sets, %d push constant bytes", rs.ID, len(setLayouts), pushConstants.Size)
		return nil
	})
	return out, err
}

func (c *VulkanPipelineLayoutCache) Destroy() {
	for id, l := range c.layouts {
		vk.DestroyPipelineLayout(c.device.LogicalDevice, l.Handle, c.allocator)
		delete(c.layouts, id)
	}
}
