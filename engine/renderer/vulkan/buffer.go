package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/**
 * @brief A host visible, coherent buffer usable as uniform or storage
 * buffer.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

const bufferUsage = vk.BufferUsageUniformBufferBit |
	vk.BufferUsageStorageBufferBit |
	vk.BufferUsageTransferDstBit

const bufferMemoryProperties = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit

func newVulkanBuffer(device *VulkanDevice, allocator *vk.AllocationCallbacks, size uint64) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("cannot create an empty buffer: %w", core.ErrInvalidBinding)
	}

	var buffer vk.Buffer
	res := vk.CreateBuffer(device.LogicalDevice, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(bufferUsage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, allocator, &buffer)
	if err := checkResult("vkCreateBuffer", res); err != nil {
		return nil, err
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device.LogicalDevice, buffer, &memReqs)
	memReqs.Deref()

	memoryIndex := device.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(bufferMemoryProperties))
	if memoryIndex < 0 {
		vk.DestroyBuffer(device.LogicalDevice, buffer, allocator)
		return nil, fmt.Errorf("no host visible memory type for buffer of %d bytes", size)
	}

	var memory vk.DeviceMemory
	res = vk.AllocateMemory(device.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}, allocator, &memory)
	if err := checkResult("vkAllocateMemory", res); err != nil {
		vk.DestroyBuffer(device.LogicalDevice, buffer, allocator)
		return nil, err
	}
	if err := checkResult("vkBindBufferMemory", vk.BindBufferMemory(device.LogicalDevice, buffer, memory, 0)); err != nil {
		vk.FreeMemory(device.LogicalDevice, memory, allocator)
		vk.DestroyBuffer(device.LogicalDevice, buffer, allocator)
		return nil, err
	}

	return &VulkanBuffer{Handle: buffer, Memory: memory, Size: size}, nil
}

// upload copies data into the mapped buffer memory at offset.
func (b *VulkanBuffer) upload(device *VulkanDevice, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d into buffer of %d: %w", len(data), offset, b.Size, core.ErrOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}

	var ptr unsafe.Pointer
	res := vk.MapMemory(device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)
	if err := checkResult("vkMapMemory", res); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	vk.UnmapMemory(device.LogicalDevice, b.Memory)
	return nil
}

func (b *VulkanBuffer) destroy(device *VulkanDevice, allocator *vk.AllocationCallbacks) {
	if b.Handle != nil {
		vk.DestroyBuffer(device.LogicalDevice, b.Handle, allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device.LogicalDevice, b.Memory, allocator)
		b.Memory = nil
	}
}

func nativeBuffer(buf *program.Buffer) (*VulkanBuffer, error) {
	if buf == nil {
		return nil, fmt.Errorf("nil buffer: %w", core.ErrInvalidBinding)
	}
	vb, ok := buf.Native.(*VulkanBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %q was not created by the vulkan context: %w", buf.Name, core.ErrInvalidBinding)
	}
	return vb, nil
}
