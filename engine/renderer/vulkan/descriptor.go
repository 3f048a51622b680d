package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/**
 * @brief Sizing of the descriptor pool backing every parameter block set.
 */
type VulkanDescriptorHeapConfig struct {
	/** @brief Maximum number of live descriptor sets. */
	MaxSets uint32
	/** @brief Descriptors reserved per descriptor type. */
	DescriptorsPerType uint32
}

func DefaultDescriptorHeapConfig() VulkanDescriptorHeapConfig {
	return VulkanDescriptorHeapConfig{
		MaxSets:            1024,
		DescriptorsPerType: 4096,
	}
}

/**
 * @brief A descriptor pool plus the Vulkan set layouts created for each
 * binder layout. Range i of a layout is binding i of the Vulkan set.
 */
type VulkanDescriptorHeap struct {
	device    *VulkanDevice
	allocator *vk.AllocationCallbacks
	locks     *VulkanLockPool

	pool    vk.DescriptorPool
	layouts map[*metadata.DescriptorSetLayout]vk.DescriptorSetLayout
}

func NewVulkanDescriptorHeap(device *VulkanDevice, allocator *vk.AllocationCallbacks, locks *VulkanLockPool, config VulkanDescriptorHeapConfig) (*VulkanDescriptorHeap, error) {
	types := []vk.DescriptorType{
		vk.DescriptorTypeUniformBuffer,
		vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeSampler,
	}
	poolSizes := make([]vk.DescriptorPoolSize, len(types))
	for i, t := range types {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            t,
			DescriptorCount: config.DescriptorsPerType,
		}
	}

	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(device.LogicalDevice, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       config.MaxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, allocator, &pool)
	if err := checkResult("vkCreateDescriptorPool", res); err != nil {
		return nil, err
	}

	return &VulkanDescriptorHeap{
		device:    device,
		allocator: allocator,
		locks:     locks,
		pool:      pool,
		layouts:   make(map[*metadata.DescriptorSetLayout]vk.DescriptorSetLayout),
	}, nil
}

// SetLayout returns the Vulkan layout of a binder layout, creating it on
// first use.
func (h *VulkanDescriptorHeap) SetLayout(layout *metadata.DescriptorSetLayout) (vk.DescriptorSetLayout, error) {
	var out vk.DescriptorSetLayout
	err := h.locks.SafeCall(PipelineManagement, func() error {
		if l, ok := h.layouts[layout]; ok {
			out = l
			return nil
		}

		bindings := make([]vk.DescriptorSetLayoutBinding, len(layout.Ranges))
		for i, r := range layout.Ranges {
			bindings[i] = vk.DescriptorSetLayoutBinding{
				Binding:         uint32(i),
				DescriptorType:  vulkanDescriptorType(r.Type),
				DescriptorCount: r.DescCount,
				StageFlags:      vulkanStageFlags(layout.Visibility),
			}
		}

		var l vk.DescriptorSetLayout
		res := vk.CreateDescriptorSetLayout(h.device.LogicalDevice, &vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}, h.allocator, &l)
		if err := checkResult("vkCreateDescriptorSetLayout", res); err != nil {
			return err
		}
		h.layouts[layout] = l
		out = l
		return nil
	})
	return out, err
}

func (h *VulkanDescriptorHeap) AllocateDescriptorSet(layout *metadata.DescriptorSetLayout) (interface{}, error) {
	setLayout, err := h.SetLayout(layout)
	if err != nil {
		return nil, err
	}

	var set vk.DescriptorSet
	err = h.locks.SafeCall(ResourceManagement, func() error {
		res := vk.AllocateDescriptorSets(h.device.LogicalDevice, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     h.pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
		}, &set)
		return checkResult("vkAllocateDescriptorSets", res)
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// WriteDescriptorSet updates the set in one call. Null resources leave their
// descriptor untouched.
func (h *VulkanDescriptorHeap) WriteDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout, writes []program.DescriptorWrite) error {
	set, ok := native.(vk.DescriptorSet)
	if !ok {
		return fmt.Errorf("descriptor set handle is %T: %w", native, core.ErrInvalidBinding)
	}

	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		if w.Resource == nil {
			continue
		}
		wd := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(w.Range),
			DstArrayElement: w.ArrayIndex,
			DescriptorCount: 1,
			DescriptorType:  vulkanDescriptorType(w.Type),
		}
		if err := fillDescriptorInfo(&wd, w); err != nil {
			return err
		}
		vkWrites = append(vkWrites, wd)
	}
	if len(vkWrites) == 0 {
		return nil
	}

	return h.locks.SafeCall(ResourceManagement, func() error {
		vk.UpdateDescriptorSets(h.device.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}

func fillDescriptorInfo(wd *vk.WriteDescriptorSet, w program.DescriptorWrite) error {
	switch w.Type {
	case metadata.DescriptorTypeConstantBuffer, metadata.DescriptorTypeUnorderedAccess:
		buf, ok := w.Resource.(*program.Buffer)
		if !ok {
			return fmt.Errorf("%s descriptor needs a buffer, got %T: %w", w.Type, w.Resource, core.ErrInvalidBinding)
		}
		vb, ok := buf.Native.(*VulkanBuffer)
		if !ok {
			return fmt.Errorf("buffer %q was not created by the vulkan context: %w", buf.Name, core.ErrInvalidBinding)
		}
		wd.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: vb.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(buf.Size),
		}}
	case metadata.DescriptorTypeSampler:
		s, ok := w.Resource.(*program.Sampler)
		if !ok {
			return fmt.Errorf("sampler descriptor got %T: %w", w.Resource, core.ErrInvalidBinding)
		}
		handle, _ := s.Native.(vk.Sampler)
		wd.PImageInfo = []vk.DescriptorImageInfo{{Sampler: handle}}
	default:
		t, ok := w.Resource.(*program.Texture)
		if !ok {
			return fmt.Errorf("%s descriptor needs a texture, got %T: %w", w.Type, w.Resource, core.ErrInvalidBinding)
		}
		view, _ := t.Native.(vk.ImageView)
		wd.PImageInfo = []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}}
	}
	return nil
}

func (h *VulkanDescriptorHeap) FreeDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout) {
	set, ok := native.(vk.DescriptorSet)
	if !ok {
		core.LogWarn("cannot free descriptor set handle of type %T", native)
		return
	}
	_ = h.locks.SafeCall(ResourceManagement, func() error {
		if res := vk.FreeDescriptorSets(h.device.LogicalDevice, h.pool, 1, &set); !VulkanResultIsSuccess(res) {
			core.LogWarn("vkFreeDescriptorSets failed with %s", VulkanResultString(res))
		}
		return nil
	})
}

func (h *VulkanDescriptorHeap) Destroy() {
	for _, l := range h.layouts {
		vk.DestroyDescriptorSetLayout(h.device.LogicalDevice, l, h.allocator)
	}
	h.layouts = make(map[*metadata.DescriptorSetLayout]vk.DescriptorSetLayout)
	if h.pool != nil {
		vk.DestroyDescriptorPool(h.device.LogicalDevice, h.pool, h.allocator)
		h.pool = nil
	}
}
