package program

import (
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/math"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

/** @brief A buffer bound by address directly in the root signature. */
type RootDescriptorDesc struct {
	RegIndex uint32
	RegSpace uint32
	UAV      bool
}

/** @brief Inline 32-bit constants uploaded directly into the root signature. */
type RootConstantsDesc struct {
	Words uint32
}

/**
 * @brief Ordered partition of the binding slots of a pipeline: descriptor
 * sets in [0,S), root descriptors in [S,S+D) and root constants after them.
 */
type RootSignature struct {
	ID              uuid.UUID
	sets            []*metadata.DescriptorSetLayout
	rootDescriptors []RootDescriptorDesc
	rootConstants   []RootConstantsDesc
}

// NewRootSignature flattens a reflection tree in the order the binder walks it.
func NewRootSignature(reflector *metadata.ParameterBlockReflection) *RootSignature {
	rs := &RootSignature{ID: uuid.New()}
	rs.collectSets(reflector)
	rs.collectRootDescriptors(reflector)
	return rs
}

func (rs *RootSignature) collectSets(r *metadata.ParameterBlockReflection) {
	if r.DefaultConstantBufferBindingInfo().UseRootConstants {
		rs.rootConstants = append(rs.rootConstants, RootConstantsDesc{Words: math.DivCeil(r.ElementByteSize(), 4)})
	}
	for i := 0; i < r.DescriptorSetCount(); i++ {
		rs.sets = append(rs.sets, r.DescriptorSetLayout(i))
	}
	for i := 0; i < r.ParameterBlockSubObjectRangeCount(); i++ {
		ri := r.ParameterBlockSubObjectRangeIndex(i)
		sub := r.BindingInfo(ri).SubObject
		for e := uint32(0); e < r.ResourceRange(ri).Count; e++ {
			rs.collectSets(sub)
		}
	}
}

func (rs *RootSignature) collectRootDescriptors(r *metadata.ParameterBlockReflection) {
	for i := 0; i < r.RootDescriptorRangeCount(); i++ {
		rr := r.ResourceRange(r.RootDescriptorRangeIndex(i))
		rs.rootDescriptors = append(rs.rootDescriptors, RootDescriptorDesc{
			RegIndex: rr.BaseIndex,
			RegSpace: rr.Space,
			UAV:      rr.IsUAV(),
		})
	}
	for ri := 0; ri < r.ResourceRangeCount(); ri++ {
		info := r.BindingInfo(ri)
		if info.Flavor != metadata.FlavorConstantBuffer && info.Flavor != metadata.FlavorParameterBlock {
			continue
		}
		for e := uint32(0); e < r.ResourceRange(ri).Count; e++ {
			rs.collectRootDescriptors(info.SubObject)
		}
	}
}

func (rs *RootSignature) DescriptorSetBaseIndex() uint32 {
	return 0
}

func (rs *RootSignature) RootDescriptorBaseIndex() uint32 {
	return uint32(len(rs.sets))
}

func (rs *RootSignature) RootConstantBaseIndex() uint32 {
	return uint32(len(rs.sets) + len(rs.rootDescriptors))
}

func (rs *RootSignature) DescriptorSetCount() int {
	return len(rs.sets)
}

func (rs *RootSignature) DescriptorSetLayout(i int) *metadata.DescriptorSetLayout {
	return rs.sets[i]
}

func (rs *RootSignature) RootDescriptorCount() int {
	return len(rs.rootDescriptors)
}

func (rs *RootSignature) RootDescriptor(i int) RootDescriptorDesc {
	return rs.rootDescriptors[i]
}

func (rs *RootSignature) RootConstantCount() int {
	return len(rs.rootConstants)
}

func (rs *RootSignature) RootConstant(i int) RootConstantsDesc {
	return rs.rootConstants[i]
}

// RootParameterCount is the total number of root indices.
func (rs *RootSignature) RootParameterCount() int {
	return len(rs.sets) + len(rs.rootDescriptors) + len(rs.rootConstants)
}

func (rs *RootSignature) BindForGraphics(ctx Context) {
	ctx.CommandList().SetGraphicsRootSignature(rs)
	core.MetricsRootSignatureBind()
}

func (rs *RootSignature) BindForCompute(ctx Context) {
	ctx.CommandList().SetComputeRootSignature(rs)
	core.MetricsRootSignatureBind()
}

// equivalent reports whether the two signatures can be used interchangeably.
func (rs *RootSignature) equivalent(o *RootSignature) bool {
	if len(rs.sets) != len(o.sets) || len(rs.rootDescriptors) != len(o.rootDescriptors) || len(rs.rootConstants) != len(o.rootConstants) {
		return false
	}
	for i := range rs.sets {
		if !rs.sets[i].Equal(o.sets[i]) {
			return false
		}
	}
	for i := range rs.rootDescriptors {
		if rs.rootDescriptors[i] != o.rootDescriptors[i] {
			return false
		}
	}
	for i := range rs.rootConstants {
		if rs.rootConstants[i] != o.rootConstants[i] {
			return false
		}
	}
	return true
}

/**
 * @brief Placement of one root index in push constant memory.
 */
type PushConstantRange struct {
	RootIndex uint32
	Offset    uint32
	Size      uint32
}

/**
 * @brief Maps root descriptors (8-byte device addresses) and root constants
 * (4-byte words) onto a single push constant block.
 */
type PushConstantLayout struct {
	Ranges []PushConstantRange
	Size   uint32
}

// Find returns the range for a root index.
func (l PushConstantLayout) Find(rootIndex uint32) (PushConstantRange, bool) {
	for _, r := range l.Ranges {
		if r.RootIndex == rootIndex {
			return r, true
		}
	}
	return PushConstantRange{}, false
}

func (rs *RootSignature) PushConstantLayout() PushConstantLayout {
	var l PushConstantLayout
	offset := uint32(0)
	for i := range rs.rootDescriptors {
		offset = math.AlignUp(offset, 8)
		l.Ranges = append(l.Ranges, PushConstantRange{
			RootIndex: rs.RootDescriptorBaseIndex() + uint32(i),
			Offset:    offset,
			Size:      8,
		})
		offset += 8
	}
	for i, rc := range rs.rootConstants {
		l.Ranges = append(l.Ranges, PushConstantRange{
			RootIndex: rs.RootConstantBaseIndex() + uint32(i),
			Offset:    offset,
			Size:      rc.Words * 4,
		})
		offset += rc.Words * 4
	}
	l.Size = offset
	return l
}

/**
 * @brief Reuses root signatures whose layouts are equivalent.
 */
type RootSignatureCache struct {
	mu      sync.Mutex
	entries []*RootSignature
}

func NewRootSignatureCache() *RootSignatureCache {
	return &RootSignatureCache{}
}

// Get returns a cached signature equivalent to the one the reflector
// describes, creating it on first use.
func (c *RootSignatureCache) Get(reflector *metadata.ParameterBlockReflection) *RootSignature {
	candidate := NewRootSignature(reflector)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rs := range c.entries {
		if rs.equivalent(candidate) {
			return rs
		}
	}
	c.entries = append(c.entries, candidate)
	core.LogDebug("root signature %s created: %d sets, %d root descriptors, %d root constants", candidate.ID, len(candidate.sets), len(candidate.rootDescriptors), len(candidate.rootConstants))
	return candidate
}

func (c *RootSignatureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
