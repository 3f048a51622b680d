package vulkan

import (
	"fmt"

	"github.com/google/uuid"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/**
 * @brief Records binder commands into a single primary command buffer on
 * the compute queue. Implements program.Context.
 */
type VulkanContext struct {
	Device    *VulkanDevice
	Allocator *vk.AllocationCallbacks
	Locks     *VulkanLockPool

	CommandPool   vk.CommandPool
	CommandBuffer *VulkanCommandBuffer

	heap        *VulkanDescriptorHeap
	descriptors *program.RecyclingAllocator
	layouts     *VulkanPipelineLayoutCache
	commandList *VulkanCommandList
	buffers     map[uuid.UUID]*program.Buffer
}

func NewVulkanContext(device *VulkanDevice, allocator *vk.AllocationCallbacks, binder core.BinderConfig, heapConfig VulkanDescriptorHeapConfig) (*VulkanContext, error) {
	vc := &VulkanContext{
		Device:    device,
		Allocator: allocator,
		Locks:     NewVulkanLockPool(),
		buffers:   make(map[uuid.UUID]*program.Buffer),
	}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.ComputeQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := checkResult("vkCreateCommandPool", vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, allocator, &pool)); err != nil {
		return nil, err
	}
	vc.CommandPool = pool

	cb, err := NewVulkanCommandBuffer(device, pool)
	if err != nil {
		vk.DestroyCommandPool(device.LogicalDevice, pool, allocator)
		return nil, err
	}
	vc.CommandBuffer = cb

	heap, err := NewVulkanDescriptorHeap(device, allocator, vc.Locks, heapConfig)
	if err != nil {
		cb.Free(device, pool)
		vk.DestroyCommandPool(device.LogicalDevice, pool, allocator)
		return nil, err
	}
	vc.heap = heap
	vc.descriptors = program.NewRecyclingAllocator(heap, binder.DescriptorRecycleCapacity)
	vc.layouts = NewVulkanPipelineLayoutCache(device, allocator, vc.Locks, heap)
	vc.commandList = NewVulkanCommandList(cb, vc.layouts)

	core.LogInfo("vulkan binding context created")
	return vc, nil
}

// Begin starts recording a new batch of binder commands.
func (vc *VulkanContext) Begin() error {
	return vc.Locks.SafeCall(CommandBufferManagement, func() error {
		vc.commandList.reset()
		return vc.CommandBuffer.Begin(true)
	})
}

// Submit ends recording and waits until the compute queue is idle.
func (vc *VulkanContext) Submit() error {
	return vc.Locks.SafeCall(QueueManagement, func() error {
		if !vc.CommandBuffer.IsRecording() {
			return fmt.Errorf("submit without a batch in recording")
		}
		return vc.CommandBuffer.SubmitAndWait(vc.Device.ComputeQueue)
	})
}

func (vc *VulkanContext) CommandList() program.CommandList {
	return vc.commandList
}

func (vc *VulkanContext) Descriptors() program.DescriptorAllocator {
	return vc.descriptors
}

func (vc *VulkanContext) CreateBuffer(name string, size uint64) (*program.Buffer, error) {
	buf := program.NewBuffer(name, size)
	err := vc.Locks.SafeCall(BufferManagement, func() error {
		vb, err := newVulkanBuffer(vc.Device, vc.Allocator, size)
		if err != nil {
			return fmt.Errorf("failed to create buffer %q: %w", name, err)
		}
		buf.Native = vb
		vc.buffers[buf.ID] = buf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (vc *VulkanContext) UpdateBuffer(buffer *program.Buffer, offset uint64, data []byte) error {
	vb, err := nativeBuffer(buffer)
	if err != nil {
		return err
	}
	return vc.Locks.SafeCall(MemoryManagement, func() error {
		return vb.upload(vc.Device, offset, data)
	})
}

// DestroyBuffer releases a buffer created by this context.
func (vc *VulkanContext) DestroyBuffer(buffer *program.Buffer) {
	_ = vc.Locks.SafeCall(BufferManagement, func() error {
		if vb, ok := buffer.Native.(*VulkanBuffer); ok {
			vb.destroy(vc.Device, vc.Allocator)
		}
		delete(vc.buffers, buffer.ID)
		return nil
	})
}

func (vc *VulkanContext) Destroy() {
	vk.DeviceWaitIdle(vc.Device.LogicalDevice)

	for _, buf := range vc.buffers {
		if vb, ok := buf.Native.(*VulkanBuffer); ok {
			vb.destroy(vc.Device, vc.Allocator)
		}
	}
	vc.buffers = make(map[uuid.UUID]*program.Buffer)

	vc.layouts.Destroy()
	vc.heap.Destroy()
	if vc.CommandBuffer != nil {
		vc.CommandBuffer.Free(vc.Device, vc.CommandPool)
	}
	vk.DestroyCommandPool(vc.Device.LogicalDevice, vc.CommandPool, vc.Allocator)
	core.LogInfo("vulkan binding context destroyed")
}
