package program

import "github.com/spaghettifunk/shaderbind/engine/renderer/metadata"

/**
 * @brief Low-level command list operations the binder emits. Root indices
 * follow the zones of the bound RootSignature.
 */
type CommandList interface {
	SetGraphicsRootSignature(rs *RootSignature)
	SetComputeRootSignature(rs *RootSignature)

	SetGraphicsRootDescriptorTable(rootIndex uint32, set *DescriptorSet)
	SetComputeRootDescriptorTable(rootIndex uint32, set *DescriptorSet)

	SetGraphicsRootShaderResourceView(rootIndex uint32, address uint64)
	SetGraphicsRootUnorderedAccessView(rootIndex uint32, address uint64)
	SetComputeRootShaderResourceView(rootIndex uint32, address uint64)
	SetComputeRootUnorderedAccessView(rootIndex uint32, address uint64)

	SetGraphicsRoot32BitConstants(rootIndex uint32, words []uint32, destOffset uint32)
	SetComputeRoot32BitConstants(rootIndex uint32, words []uint32, destOffset uint32)

	Dispatch(x, y, z uint32)
}

/**
 * @brief A single descriptor write into an allocated set.
 */
type DescriptorWrite struct {
	/** @brief Index of the range within the set layout. */
	Range int
	/** @brief Element within the range. */
	ArrayIndex uint32
	Type       metadata.DescriptorType
	/** @brief The resource to write, nil writes a null descriptor. */
	Resource Resource
}

/**
 * @brief Allocates and writes GPU-visible descriptor tables.
 */
type DescriptorAllocator interface {
	AllocateDescriptorSet(layout *metadata.DescriptorSetLayout) (interface{}, error)
	WriteDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout, writes []DescriptorWrite) error
	FreeDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout)
}

/**
 * @brief The command context an apply call records into. Owned exclusively
 * by the caller for the duration of the call.
 */
type Context interface {
	CommandList() CommandList
	Descriptors() DescriptorAllocator
	CreateBuffer(name string, size uint64) (*Buffer, error)
	UpdateBuffer(buffer *Buffer, offset uint64, data []byte) error
	DestroyBuffer(buffer *Buffer)
}
