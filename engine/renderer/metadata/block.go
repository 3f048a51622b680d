package metadata

import "fmt"

/** @brief Configuration for one resource range of a parameter block. */
type ResourceRangeConfig struct {
	Name           string
	DescriptorType DescriptorType
	Flavor         Flavor
	/** @brief Number of array elements. Zero is treated as 1. */
	Count     uint32
	BaseIndex uint32
	Space     uint32
	/** @brief Reflector of the nested block for sub-object flavors. */
	SubObject *ParameterBlockReflection
}

/**
 * @brief Configuration for a parameter block reflector. Typically produced by
 * a reflection loader.
 */
type ParameterBlockReflectionConfig struct {
	/** @brief The type name of the block. */
	Name string
	/** @brief Size in bytes of the default constant buffer. */
	ElementByteSize uint32
	/** @brief Upload the default constant buffer as inline root constants. */
	UseRootConstants bool
	/** @brief Register used by a descriptor-backed default constant buffer (space 0). */
	DefaultConstantBufferRegister uint32
	/** @brief Visibility of every descriptor set declared by the block. Zero means all stages. */
	Visibility ShaderStage
	Variables  []VariableReflection
	Ranges     []ResourceRangeConfig
}

/**
 * @brief Read-only description of one reflected parameter block scope.
 */
type ParameterBlockReflection struct {
	name            string
	elementByteSize uint32
	variables       []VariableReflection

	resourceRanges []ResourceRange
	bindingInfos   []ResourceRangeBindingInfo

	defaultConstantBuffer DefaultConstantBufferBindingInfo
	descriptorSets        []*DescriptorSetLayout

	parameterBlockSubObjectRangeIndices []int
	rootDescriptorRangeIndices          []int
}

type setKey struct {
	space   uint32
	sampler bool
}

// NewParameterBlockReflection validates the configuration and derives the
// descriptor set layouts and the sub-object / root-descriptor range lists.
//
// Descriptor tables are grouped one per register space, samplers in a set of
// their own. Sets appear in order of first use; a descriptor-backed default
// constant buffer comes first.
func NewParameterBlockReflection(config ParameterBlockReflectionConfig) (*ParameterBlockReflection, error) {
	r := &ParameterBlockReflection{
		name:            config.Name,
		elementByteSize: config.ElementByteSize,
		variables:       append([]VariableReflection(nil), config.Variables...),
		defaultConstantBuffer: DefaultConstantBufferBindingInfo{
			UseRootConstants:     config.UseRootConstants,
			DescriptorSetIndex:   -1,
			DescriptorRangeIndex: -1,
		},
	}

	visibility := config.Visibility
	if visibility == 0 {
		visibility = ShaderStageAll
	}

	for _, v := range config.Variables {
		if v.Offset+v.Size > config.ElementByteSize {
			return nil, fmt.Errorf("block %q: variable %q [%d,%d) exceeds element size %d", config.Name, v.Name, v.Offset, v.Offset+v.Size, config.ElementByteSize)
		}
	}

	setIndices := make(map[setKey]int)
	getSet := func(key setKey) int {
		if i, ok := setIndices[key]; ok {
			return i
		}
		i := len(r.descriptorSets)
		setIndices[key] = i
		r.descriptorSets = append(r.descriptorSets, &DescriptorSetLayout{Visibility: visibility})
		return i
	}

	if config.ElementByteSize > 0 && !config.UseRootConstants {
		s := getSet(setKey{space: 0})
		set := r.descriptorSets[s]
		r.defaultConstantBuffer.DescriptorSetIndex = s
		r.defaultConstantBuffer.DescriptorRangeIndex = len(set.Ranges)
		set.Ranges = append(set.Ranges, DescriptorRange{
			Type:               DescriptorTypeConstantBuffer,
			BaseRegIndex:       config.DefaultConstantBufferRegister,
			DescCount:          1,
			RegSpace:           0,
			ResourceRangeIndex: -1,
		})
	}

	for i, rc := range config.Ranges {
		count := rc.Count
		if count == 0 {
			count = 1
		}
		if rc.Flavor.HasSubObject() && rc.SubObject == nil {
			return nil, fmt.Errorf("block %q: range %q of flavor %s has no sub-object reflector", config.Name, rc.Name, rc.Flavor)
		}
		switch rc.Flavor {
		case FlavorConstantBuffer:
			if rc.DescriptorType != DescriptorTypeConstantBuffer {
				return nil, fmt.Errorf("block %q: constant buffer range %q has descriptor type %s", config.Name, rc.Name, rc.DescriptorType)
			}
			// Only root descriptors of a constant buffer sub-object are bound;
			// its own tables and nested blocks have no root index.
			for j := 0; j < rc.SubObject.ResourceRangeCount(); j++ {
				if f := rc.SubObject.BindingInfo(j).Flavor; f != FlavorRootDescriptor {
					return nil, fmt.Errorf("block %q: constant buffer range %q declares %s range %q", config.Name, rc.Name, f, rc.SubObject.ResourceRange(j).Name)
				}
			}
		case FlavorRootConstant:
			if !rc.SubObject.DefaultConstantBufferBindingInfo().UseRootConstants {
				return nil, fmt.Errorf("block %q: root constant range %q has a sub-object without root constants", config.Name, rc.Name)
			}
		case FlavorRootDescriptor:
			if rc.DescriptorType != DescriptorTypeShaderResource && rc.DescriptorType != DescriptorTypeUnorderedAccess {
				return nil, fmt.Errorf("block %q: root descriptor range %q must be srv or uav, got %s", config.Name, rc.Name, rc.DescriptorType)
			}
		}

		r.resourceRanges = append(r.resourceRanges, ResourceRange{
			Name:           rc.Name,
			DescriptorType: rc.DescriptorType,
			Count:          count,
			BaseIndex:      rc.BaseIndex,
			Space:          rc.Space,
		})
		r.bindingInfos = append(r.bindingInfos, ResourceRangeBindingInfo{
			Flavor:    rc.Flavor,
			SubObject: rc.SubObject,
		})

		switch rc.Flavor {
		case FlavorSimple, FlavorConstantBuffer:
			s := getSet(setKey{space: rc.Space, sampler: rc.DescriptorType == DescriptorTypeSampler})
			set := r.descriptorSets[s]
			set.Ranges = append(set.Ranges, DescriptorRange{
				Type:               rc.DescriptorType,
				BaseRegIndex:       rc.BaseIndex,
				DescCount:          count,
				RegSpace:           rc.Space,
				ResourceRangeIndex: i,
			})
		case FlavorParameterBlock, FlavorRootConstant:
			r.parameterBlockSubObjectRangeIndices = append(r.parameterBlockSubObjectRangeIndices, i)
		case FlavorRootDescriptor:
			r.rootDescriptorRangeIndices = append(r.rootDescriptorRangeIndices, i)
		}
	}

	return r, nil
}

func (r *ParameterBlockReflection) Name() string {
	return r.name
}

// ElementByteSize is the size in bytes of the block's default constant buffer.
func (r *ParameterBlockReflection) ElementByteSize() uint32 {
	return r.elementByteSize
}

func (r *ParameterBlockReflection) Variables() []VariableReflection {
	return r.variables
}

func (r *ParameterBlockReflection) FindVariable(name string) (VariableReflection, bool) {
	for _, v := range r.variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableReflection{}, false
}

func (r *ParameterBlockReflection) ResourceRangeCount() int {
	return len(r.resourceRanges)
}

func (r *ParameterBlockReflection) ResourceRange(i int) ResourceRange {
	return r.resourceRanges[i]
}

func (r *ParameterBlockReflection) BindingInfo(i int) ResourceRangeBindingInfo {
	return r.bindingInfos[i]
}

// FindRange returns the index of the range with the given name, or -1.
func (r *ParameterBlockReflection) FindRange(name string) int {
	for i, rr := range r.resourceRanges {
		if rr.Name == name {
			return i
		}
	}
	return -1
}

func (r *ParameterBlockReflection) DefaultConstantBufferBindingInfo() DefaultConstantBufferBindingInfo {
	return r.defaultConstantBuffer
}

func (r *ParameterBlockReflection) DescriptorSetCount() int {
	return len(r.descriptorSets)
}

func (r *ParameterBlockReflection) DescriptorSetLayout(i int) *DescriptorSetLayout {
	return r.descriptorSets[i]
}

func (r *ParameterBlockReflection) ParameterBlockSubObjectRangeCount() int {
	return len(r.parameterBlockSubObjectRangeIndices)
}

func (r *ParameterBlockReflection) ParameterBlockSubObjectRangeIndex(i int) int {
	return r.parameterBlockSubObjectRangeIndices[i]
}

func (r *ParameterBlockReflection) RootDescriptorRangeCount() int {
	return len(r.rootDescriptorRangeIndices)
}

func (r *ParameterBlockReflection) RootDescriptorRangeIndex(i int) int {
	return r.rootDescriptorRangeIndices[i]
}

// TotalDescriptorSetCount counts the descriptor sets of this block and every
// parameter block nested below it, array elements included.
func (r *ParameterBlockReflection) TotalDescriptorSetCount() int {
	n := r.DescriptorSetCount()
	for i := 0; i < r.ParameterBlockSubObjectRangeCount(); i++ {
		ri := r.ParameterBlockSubObjectRangeIndex(i)
		sub := r.bindingInfos[ri].SubObject
		n += int(r.resourceRanges[ri].Count) * sub.TotalDescriptorSetCount()
	}
	return n
}
