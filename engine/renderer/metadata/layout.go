package metadata

/**
 * @brief One range of descriptors inside a descriptor set layout.
 */
type DescriptorRange struct {
	Type         DescriptorType
	BaseRegIndex uint32
	DescCount    uint32
	RegSpace     uint32
	/**
	 * @brief Index of the owning block's resource range this descriptor range
	 * is filled from, or -1 for the block's default constant buffer.
	 * Not part of layout equivalence.
	 */
	ResourceRangeIndex int
}

/**
 * @brief The layout of a GPU-visible descriptor table.
 */
type DescriptorSetLayout struct {
	Visibility ShaderStage
	Ranges     []DescriptorRange
}

func (l *DescriptorSetLayout) RangeCount() int {
	return len(l.Ranges)
}

func (l *DescriptorSetLayout) Range(i int) DescriptorRange {
	return l.Ranges[i]
}

// DescriptorCount returns the total number of descriptors across all ranges.
func (l *DescriptorSetLayout) DescriptorCount() uint32 {
	var n uint32
	for _, r := range l.Ranges {
		n += r.DescCount
	}
	return n
}

// IsSamplerSet reports whether the layout only holds samplers.
func (l *DescriptorSetLayout) IsSamplerSet() bool {
	return len(l.Ranges) > 0 && l.Ranges[0].Type == DescriptorTypeSampler
}

// Equal reports whether two layouts are interchangeable for root signature
// reuse: same range count, same visibility and, per range, the same base
// register, descriptor count, register space and type.
func (l *DescriptorSetLayout) Equal(o *DescriptorSetLayout) bool {
	return compareLayouts(l, o, true)
}

// EqualIgnoringSpace is Equal without the register space comparison, for
// backends that have no notion of register spaces.
func (l *DescriptorSetLayout) EqualIgnoringSpace(o *DescriptorSetLayout) bool {
	return compareLayouts(l, o, false)
}

func compareLayouts(a, b *DescriptorSetLayout, compareSpace bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.RangeCount() != b.RangeCount() {
		return false
	}
	if a.Visibility != b.Visibility {
		return false
	}
	for i := 0; i < a.RangeCount(); i++ {
		rangeA := a.Range(i)
		rangeB := b.Range(i)
		if rangeA.BaseRegIndex != rangeB.BaseRegIndex {
			return false
		}
		if rangeA.DescCount != rangeB.DescCount {
			return false
		}
		if compareSpace && rangeA.RegSpace != rangeB.RegSpace {
			return false
		}
		if rangeA.Type != rangeB.Type {
			return false
		}
	}
	return true
}
