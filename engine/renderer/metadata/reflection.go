package metadata

import "fmt"

/** @brief The descriptor type of a resource range. */
type DescriptorType uint8

const (
	/** @brief Read-only resource (texture, structured buffer). */
	DescriptorTypeShaderResource DescriptorType = iota
	/** @brief Read-write resource. */
	DescriptorTypeUnorderedAccess
	/** @brief Constant (uniform) buffer. */
	DescriptorTypeConstantBuffer
	/** @brief Sampler state. */
	DescriptorTypeSampler
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeShaderResource:
		return "srv"
	case DescriptorTypeUnorderedAccess:
		return "uav"
	case DescriptorTypeConstantBuffer:
		return "cbv"
	case DescriptorTypeSampler:
		return "sampler"
	default:
		return fmt.Sprintf("DescriptorType(%d)", uint8(t))
	}
}

func DescriptorTypeFromString(s string) (DescriptorType, error) {
	switch s {
	case "srv", "shader_resource":
		return DescriptorTypeShaderResource, nil
	case "uav", "unordered_access":
		return DescriptorTypeUnorderedAccess, nil
	case "cbv", "constant_buffer":
		return DescriptorTypeConstantBuffer, nil
	case "sampler":
		return DescriptorTypeSampler, nil
	}
	return 0, fmt.Errorf("string %s is not a valid DescriptorType", s)
}

/**
 * @brief How a resource range is bound to the pipeline.
 */
type Flavor uint8

const (
	/** @brief A plain resource living in a descriptor table. */
	FlavorSimple Flavor = iota
	/** @brief A constant buffer whose contents are a nested sub-object. */
	FlavorConstantBuffer
	/** @brief A nested parameter block that owns its own descriptor sets. */
	FlavorParameterBlock
	/** @brief A buffer bound by GPU address directly in the root signature. */
	FlavorRootDescriptor
	/** @brief A nested constant buffer uploaded as inline root constants. */
	FlavorRootConstant
)

func (f Flavor) String() string {
	switch f {
	case FlavorSimple:
		return "simple"
	case FlavorConstantBuffer:
		return "constant_buffer"
	case FlavorParameterBlock:
		return "parameter_block"
	case FlavorRootDescriptor:
		return "root_descriptor"
	case FlavorRootConstant:
		return "root_constant"
	default:
		return fmt.Sprintf("Flavor(%d)", uint8(f))
	}
}

func FlavorFromString(s string) (Flavor, error) {
	switch s {
	case "simple", "resource", "":
		return FlavorSimple, nil
	case "constant_buffer":
		return FlavorConstantBuffer, nil
	case "parameter_block":
		return FlavorParameterBlock, nil
	case "root_descriptor":
		return FlavorRootDescriptor, nil
	case "root_constant":
		return FlavorRootConstant, nil
	}
	return 0, fmt.Errorf("string %s is not a valid Flavor", s)
}

// HasSubObject reports whether ranges of this flavor hold nested parameter blocks.
func (f Flavor) HasSubObject() bool {
	return f == FlavorConstantBuffer || f == FlavorParameterBlock || f == FlavorRootConstant
}

/**
 * @brief Reflected descriptor of one binding slot. Immutable once reflected.
 */
type ResourceRange struct {
	/** @brief The declared name of the range. */
	Name string
	/** @brief The descriptor type. */
	DescriptorType DescriptorType
	/** @brief The number of array elements (1 for non-arrays). */
	Count uint32
	/** @brief The base register index. */
	BaseIndex uint32
	/** @brief The register space. */
	Space uint32
}

/**
 * @brief How a resource range maps onto the root signature.
 */
type ResourceRangeBindingInfo struct {
	Flavor Flavor
	/** @brief The reflector of the nested block, for flavors with sub-objects. */
	SubObject *ParameterBlockReflection
}

// IsUAV reports whether a root descriptor bound for this range is unordered access.
func (r ResourceRange) IsUAV() bool {
	return r.DescriptorType == DescriptorTypeUnorderedAccess
}

/** @brief A scalar/vector variable inside a block's default constant buffer. */
type VariableReflection struct {
	Name   string
	Offset uint32
	Size   uint32
	Type   string
}

/**
 * @brief Describes how the default constant buffer of a block is bound.
 */
type DefaultConstantBufferBindingInfo struct {
	/** @brief True when the buffer is uploaded as inline root constants. */
	UseRootConstants bool
	/** @brief Descriptor set holding the buffer's descriptor, or -1. */
	DescriptorSetIndex int
	/** @brief Range within that set, or -1. */
	DescriptorRangeIndex int
}

// IsDescriptorBacked reports whether the buffer lives in a descriptor table.
func (i DefaultConstantBufferBindingInfo) IsDescriptorBacked() bool {
	return !i.UseRootConstants && i.DescriptorSetIndex >= 0
}
