package vulkan

import (
	"encoding/binary"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

type boundLayout struct {
	bindPoint vk.PipelineBindPoint
	layout    *VulkanPipelineLayout
}

/**
 * @brief Translates binder commands into a Vulkan command buffer. Root
 * indices of descriptor sets become set numbers, root descriptors and root
 * constants become push constant writes.
 */
type VulkanCommandList struct {
	commandBuffer *VulkanCommandBuffer
	layouts       *VulkanPipelineLayoutCache

	graphics boundLayout
	compute  boundLayout
}

func NewVulkanCommandList(commandBuffer *VulkanCommandBuffer, layouts *VulkanPipelineLayoutCache) *VulkanCommandList {
	return &VulkanCommandList{
		commandBuffer: commandBuffer,
		layouts:       layouts,
		graphics:      boundLayout{bindPoint: vk.PipelineBindPointGraphics},
		compute:       boundLayout{bindPoint: vk.PipelineBindPointCompute},
	}
}

// reset forgets the bound root signatures, at the start of a recording.
func (cl *VulkanCommandList) reset() {
	cl.graphics.layout = nil
	cl.compute.layout = nil
}

func (cl *VulkanCommandList) setRootSignature(b *boundLayout, rs *program.RootSignature) {
	l, err := cl.layouts.Get(rs)
	if err != nil {
		core.LogError("failed to bind root signature %s: %s", rs.ID, err)
		b.layout = nil
		return
	}
	b.layout = l
}

func (cl *VulkanCommandList) setDescriptorTable(b *boundLayout, rootIndex uint32, set *program.DescriptorSet) {
	if b.layout == nil {
		core.LogError("descriptor table at root index %d bound without a root signature", rootIndex)
		return
	}
	handle, ok := set.Native.(vk.DescriptorSet)
	if !ok {
		core.LogError("descriptor set %s has no vulkan handle", set.ID)
		return
	}
	vk.CmdBindDescriptorSets(cl.commandBuffer.Handle, b.bindPoint, b.layout.Handle, rootIndex, 1, []vk.DescriptorSet{handle}, 0, nil)
}

func (cl *VulkanCommandList) pushRange(b *boundLayout, rootIndex uint32) (program.PushConstantRange, bool) {
	if b.layout == nil {
		core.LogError("push constants at root index %d written without a root signature", rootIndex)
		return program.PushConstantRange{}, false
	}
	r, ok := b.layout.PushConstants.Find(rootIndex)
	if !ok {
		core.LogError("root index %d is not a push constant of root signature %s", rootIndex, b.layout.RootSignature.ID)
	}
	return r, ok
}

func (cl *VulkanCommandList) setRootAddress(b *boundLayout, rootIndex uint32, address uint64) {
	r, ok := cl.pushRange(b, rootIndex)
	if !ok {
		return
	}
	var data [8]byte
	binary.LittleEndian.PutUint64(data[:], address)
	vk.CmdPushConstants(cl.commandBuffer.Handle, b.layout.Handle, vk.ShaderStageFlags(vk.ShaderStageAll), r.Offset, r.Size, unsafe.Pointer(&data[0]))
}

func (cl *VulkanCommandList) setRootConstants(b *boundLayout, rootIndex uint32, words []uint32, destOffset uint32) {
	if len(words) == 0 {
		return
	}
	r, ok := cl.pushRange(b, rootIndex)
	if !ok {
		return
	}
	size := uint32(len(words)) * 4
	if destOffset*4+size > r.Size {
		core.LogError("%d root constant words at offset %d overflow root index %d", len(words), destOffset, rootIndex)
		return
	}
	vk.CmdPushConstants(cl.commandBuffer.Handle, b.layout.Handle, vk.ShaderStageFlags(vk.ShaderStageAll), r.Offset+destOffset*4, size, unsafe.Pointer(&words[0]))
}

func (cl *VulkanCommandList) SetGraphicsRootSignature(rs *program.RootSignature) {
	cl.setRootSignature(&cl.graphics, rs)
}

func (cl *VulkanCommandList) SetComputeRootSignature(rs *program.RootSignature) {
	cl.setRootSignature(&cl.compute, rs)
}

func (cl *VulkanCommandList) SetGraphicsRootDescriptorTable(rootIndex uint32, set *program.DescriptorSet) {
	cl.setDescriptorTable(&cl.graphics, rootIndex, set)
}

func (cl *VulkanCommandList) SetComputeRootDescriptorTable(rootIndex uint32, set *program.DescriptorSet) {
	cl.setDescriptorTable(&cl.compute, rootIndex, set)
}

func (cl *VulkanCommandList) SetGraphicsRootShaderResourceView(rootIndex uint32, address uint64) {
	cl.setRootAddress(&cl.graphics, rootIndex, address)
}

func (cl *VulkanCommandList) SetGraphicsRootUnorderedAccessView(rootIndex uint32, address uint64) {
	cl.setRootAddress(&cl.graphics, rootIndex, address)
}

func (cl *VulkanCommandList) SetComputeRootShaderResourceView(rootIndex uint32, address uint64) {
	cl.setRootAddress(&cl.compute, rootIndex, address)
}

func (cl *VulkanCommandList) SetComputeRootUnorderedAccessView(rootIndex uint32, address uint64) {
	cl.setRootAddress(&cl.compute, rootIndex, address)
}

func (cl *VulkanCommandList) SetGraphicsRoot32BitConstants(rootIndex uint32, words []uint32, destOffset uint32) {
	cl.setRootConstants(&cl.graphics, rootIndex, words, destOffset)
}

func (cl *VulkanCommandList) SetComputeRoot32BitConstants(rootIndex uint32, words []uint32, destOffset uint32) {
	cl.setRootConstants(&cl.compute, rootIndex, words, destOffset)
}

func (cl *VulkanCommandList) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(cl.commandBuffer.Handle, x, y, z)
}
