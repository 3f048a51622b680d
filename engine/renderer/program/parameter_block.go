package program

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

// epochCounter is shared by every block so epochs from different blocks are
// comparable and a subtree epoch can be computed with max.
var epochCounter atomic.Uint64

func nextEpoch() uint64 {
	return epochCounter.Add(1)
}

/**
 * @brief A specialization argument bound on a parameter block: a concrete
 * type for a generic type parameter slot.
 */
type SpecializationArg struct {
	Slot uint32
	Type string
}

/**
 * @brief Mutable container of bound values for one reflected scope. The
 * structural layout is fixed by the reflector; only values change.
 */
type ParameterBlock struct {
	id        uuid.UUID
	version   *ProgramVersion
	reflector *metadata.ParameterBlockReflection

	data      []byte
	resources [][]Resource
	subBlocks [][]*ParameterBlock
	typeArgs  []SpecializationArg

	sets           []*DescriptorSet
	constantBuffer *Buffer
	uploadedEpoch  uint64

	epoch uint64

	specialized      *metadata.ParameterBlockReflection
	specializedEpoch uint64
}

// NewParameterBlock creates a block for the reflector. Blocks for nested
// sub-object ranges are created eagerly. The version may be nil for blocks
// that never need specialization.
func NewParameterBlock(version *ProgramVersion, reflector *metadata.ParameterBlockReflection) *ParameterBlock {
	b := &ParameterBlock{
		id:        uuid.New(),
		version:   version,
		reflector: reflector,
		data:      make([]byte, reflector.ElementByteSize()),
		resources: make([][]Resource, reflector.ResourceRangeCount()),
		subBlocks: make([][]*ParameterBlock, reflector.ResourceRangeCount()),
		sets:      make([]*DescriptorSet, reflector.DescriptorSetCount()),
		epoch:     nextEpoch(),
	}
	for i := 0; i < reflector.ResourceRangeCount(); i++ {
		rr := reflector.ResourceRange(i)
		info := reflector.BindingInfo(i)
		if info.Flavor.HasSubObject() {
			b.subBlocks[i] = make([]*ParameterBlock, rr.Count)
			for j := range b.subBlocks[i] {
				b.subBlocks[i][j] = NewParameterBlock(version, info.SubObject)
			}
			continue
		}
		b.resources[i] = make([]Resource, rr.Count)
	}
	return b
}

func (b *ParameterBlock) ID() uuid.UUID {
	return b.id
}

func (b *ParameterBlock) Reflector() *metadata.ParameterBlockReflection {
	return b.reflector
}

func (b *ParameterBlock) ProgramVersion() *ProgramVersion {
	return b.version
}

func (b *ParameterBlock) markChanged() {
	b.epoch = nextEpoch()
}

func (b *ParameterBlock) checkIndex(op string, rangeIndex int, arrayIndex uint32) error {
	if rangeIndex < 0 || rangeIndex >= b.reflector.ResourceRangeCount() {
		return fmt.Errorf("%s: range %d of %q: %w", op, rangeIndex, b.reflector.Name(), core.ErrOutOfRange)
	}
	if arrayIndex >= b.reflector.ResourceRange(rangeIndex).Count {
		return fmt.Errorf("%s: element %d of range %q: %w", op, arrayIndex, b.reflector.ResourceRange(rangeIndex).Name, core.ErrOutOfRange)
	}
	return nil
}

// SetBytes copies data into the default constant buffer at offset.
func (b *ParameterBlock) SetBytes(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("SetBytes: [%d,%d) exceeds %d bytes of %q: %w", offset, uint64(offset)+uint64(len(data)), len(b.data), b.reflector.Name(), core.ErrOutOfRange)
	}
	copy(b.data[offset:], data)
	b.markChanged()
	return nil
}

// SetVariable writes a named variable. data must not be larger than the variable.
func (b *ParameterBlock) SetVariable(name string, data []byte) error {
	v, ok := b.reflector.FindVariable(name)
	if !ok {
		return fmt.Errorf("SetVariable: %q in %q: %w", name, b.reflector.Name(), core.ErrNotFound)
	}
	if uint32(len(data)) > v.Size {
		return core.NewBindingError(core.ErrKindTypeMismatch, "SetVariable", "%d bytes do not fit variable %q of %d bytes", len(data), name, v.Size)
	}
	return b.SetBytes(v.Offset, data)
}

func (b *ParameterBlock) SetUint32(name string, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return b.SetVariable(name, buf[:])
}

func (b *ParameterBlock) SetFloat32(name string, value float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(value))
	return b.SetVariable(name, buf[:])
}

// SetResource binds a resource (or nil) to an element of a plain or
// root-descriptor range.
func (b *ParameterBlock) SetResource(rangeIndex int, arrayIndex uint32, resource Resource) error {
	if err := b.checkIndex("SetResource", rangeIndex, arrayIndex); err != nil {
		return err
	}
	info := b.reflector.BindingInfo(rangeIndex)
	rr := b.reflector.ResourceRange(rangeIndex)
	if info.Flavor.HasSubObject() {
		return core.NewBindingError(core.ErrKindTypeMismatch, "SetResource", "range %q holds parameter blocks", rr.Name)
	}
	if resource != nil {
		_, isSampler := resource.(*Sampler)
		if isSampler != (rr.DescriptorType == metadata.DescriptorTypeSampler) {
			return core.NewBindingError(core.ErrKindTypeMismatch, "SetResource", "%s range %q cannot hold %q", rr.DescriptorType, rr.Name, resource.ResourceName())
		}
	}
	b.resources[rangeIndex][arrayIndex] = resource
	b.markChanged()
	return nil
}

func (b *ParameterBlock) SetResourceByName(name string, arrayIndex uint32, resource Resource) error {
	i := b.reflector.FindRange(name)
	if i < 0 {
		return fmt.Errorf("SetResourceByName: %q in %q: %w", name, b.reflector.Name(), core.ErrNotFound)
	}
	return b.SetResource(i, arrayIndex, resource)
}

// SetParameterBlock replaces the nested block of a sub-object range. The
// block must have been created for the range's reflector.
func (b *ParameterBlock) SetParameterBlock(rangeIndex int, arrayIndex uint32, block *ParameterBlock) error {
	if err := b.checkIndex("SetParameterBlock", rangeIndex, arrayIndex); err != nil {
		return err
	}
	info := b.reflector.BindingInfo(rangeIndex)
	rr := b.reflector.ResourceRange(rangeIndex)
	if !info.Flavor.HasSubObject() {
		return core.NewBindingError(core.ErrKindTypeMismatch, "SetParameterBlock", "range %q of flavor %s does not hold parameter blocks", rr.Name, info.Flavor)
	}
	if block == nil || block.reflector != info.SubObject {
		return core.NewBindingError(core.ErrKindTypeMismatch, "SetParameterBlock", "block does not match the layout of range %q", rr.Name)
	}
	b.subBlocks[rangeIndex][arrayIndex] = block
	b.markChanged()
	return nil
}

// SetTypeArgument binds a concrete type to a generic type parameter slot.
// An empty type clears the slot.
func (b *ParameterBlock) SetTypeArgument(slot uint32, concreteType string) {
	args := b.typeArgs[:0]
	for _, a := range b.typeArgs {
		if a.Slot != slot {
			args = append(args, a)
		}
	}
	b.typeArgs = args
	if concreteType != "" {
		i := len(b.typeArgs)
		for i > 0 && b.typeArgs[i-1].Slot > slot {
			i--
		}
		b.typeArgs = append(b.typeArgs, SpecializationArg{})
		copy(b.typeArgs[i+1:], b.typeArgs[i:])
		b.typeArgs[i] = SpecializationArg{Slot: slot, Type: concreteType}
	}
	b.markChanged()
}

func (b *ParameterBlock) Resource(rangeIndex int, arrayIndex uint32) (Resource, error) {
	if err := b.checkIndex("Resource", rangeIndex, arrayIndex); err != nil {
		return nil, err
	}
	if b.resources[rangeIndex] == nil {
		return nil, core.NewBindingError(core.ErrKindTypeMismatch, "Resource", "range %q holds parameter blocks", b.reflector.ResourceRange(rangeIndex).Name)
	}
	return b.resources[rangeIndex][arrayIndex], nil
}

func (b *ParameterBlock) ParameterBlock(rangeIndex int, arrayIndex uint32) (*ParameterBlock, error) {
	if err := b.checkIndex("ParameterBlock", rangeIndex, arrayIndex); err != nil {
		return nil, err
	}
	if b.subBlocks[rangeIndex] == nil {
		return nil, core.NewBindingError(core.ErrKindTypeMismatch, "ParameterBlock", "range %q does not hold parameter blocks", b.reflector.ResourceRange(rangeIndex).Name)
	}
	return b.subBlocks[rangeIndex][arrayIndex], nil
}

// RootDescriptor returns the resource bound to a root-descriptor range and
// whether it is bound as unordered access.
func (b *ParameterBlock) RootDescriptor(rangeIndex int, arrayIndex uint32) (Resource, bool, error) {
	res, err := b.Resource(rangeIndex, arrayIndex)
	if err != nil {
		return nil, false, err
	}
	return res, b.reflector.ResourceRange(rangeIndex).IsUAV(), nil
}

// RawData returns the default constant buffer bytes. Callers must not modify it.
func (b *ParameterBlock) RawData() []byte {
	return b.data
}

// EpochOfLastChange is the epoch of the last mutation of this block only.
func (b *ParameterBlock) EpochOfLastChange() uint64 {
	return b.epoch
}

// ComputeEpochOfLastChange is the latest epoch over this block and every
// nested block.
func (b *ParameterBlock) ComputeEpochOfLastChange() uint64 {
	epoch := b.epoch
	for _, elems := range b.subBlocks {
		for _, sub := range elems {
			if e := sub.ComputeEpochOfLastChange(); e > epoch {
				epoch = e
			}
		}
	}
	return epoch
}

func (b *ParameterBlock) DescriptorSet(i int) *DescriptorSet {
	if i < 0 || i >= len(b.sets) {
		return nil
	}
	return b.sets[i]
}

// ConstantBuffer returns the GPU buffer holding the default constant buffer,
// or nil before the first PrepareDescriptorSets.
func (b *ParameterBlock) ConstantBuffer() *Buffer {
	return b.constantBuffer
}

// PrepareDescriptorSets allocates and writes every descriptor set of the
// tree and uploads constant buffers whose content changed.
func (b *ParameterBlock) PrepareDescriptorSets(ctx Context) error {
	cbInfo := b.reflector.DefaultConstantBufferBindingInfo()
	if cbInfo.IsDescriptorBacked() {
		if err := b.uploadConstantBuffer(ctx); err != nil {
			return err
		}
	}

	for i := 0; i < b.reflector.ResourceRangeCount(); i++ {
		switch b.reflector.BindingInfo(i).Flavor {
		case metadata.FlavorConstantBuffer:
			for _, sub := range b.subBlocks[i] {
				if err := sub.uploadConstantBuffer(ctx); err != nil {
					return err
				}
			}
		case metadata.FlavorParameterBlock, metadata.FlavorRootConstant:
			for _, sub := range b.subBlocks[i] {
				if err := sub.PrepareDescriptorSets(ctx); err != nil {
					return err
				}
			}
		}
	}

	for i := range b.sets {
		layout := b.reflector.DescriptorSetLayout(i)
		if b.sets[i] == nil {
			set, err := allocateDescriptorSet(ctx.Descriptors(), layout)
			if err != nil {
				return fmt.Errorf("block %q set %d: %w", b.reflector.Name(), i, err)
			}
			b.sets[i] = set
		}
		set := b.sets[i]
		if !set.needsWrite(b.epoch) {
			continue
		}
		if err := ctx.Descriptors().WriteDescriptorSet(set.Native, layout, b.descriptorWrites(layout)); err != nil {
			return fmt.Errorf("block %q set %d: %w: %v", b.reflector.Name(), i, core.ErrDescriptorAllocation, err)
		}
		set.markWritten(b.epoch)
	}
	return nil
}

func (b *ParameterBlock) uploadConstantBuffer(ctx Context) error {
	if len(b.data) == 0 {
		return nil
	}
	if b.constantBuffer == nil {
		buf, err := ctx.CreateBuffer(b.reflector.Name()+"_cb", uint64(len(b.data)))
		if err != nil {
			return fmt.Errorf("constant buffer of %q: %w", b.reflector.Name(), err)
		}
		b.constantBuffer = buf
		b.uploadedEpoch = 0
	}
	if b.uploadedEpoch == b.epoch {
		return nil
	}
	if err := ctx.UpdateBuffer(b.constantBuffer, 0, b.data); err != nil {
		return fmt.Errorf("constant buffer of %q: %w", b.reflector.Name(), err)
	}
	b.uploadedEpoch = b.epoch
	return nil
}

func (b *ParameterBlock) descriptorWrites(layout *metadata.DescriptorSetLayout) []DescriptorWrite {
	var writes []DescriptorWrite
	for r := 0; r < layout.RangeCount(); r++ {
		dr := layout.Range(r)
		if dr.ResourceRangeIndex < 0 {
			w := DescriptorWrite{Range: r, Type: dr.Type}
			if b.constantBuffer != nil {
				w.Resource = b.constantBuffer
			}
			writes = append(writes, w)
			continue
		}
		ri := dr.ResourceRangeIndex
		for e := uint32(0); e < dr.DescCount; e++ {
			w := DescriptorWrite{Range: r, ArrayIndex: e, Type: dr.Type}
			if subs := b.subBlocks[ri]; subs != nil {
				if cb := subs[e].constantBuffer; cb != nil {
					w.Resource = cb
				}
			} else if res := b.resources[ri][e]; res != nil {
				w.Resource = res
			}
			writes = append(writes, w)
		}
	}
	return writes
}

// Release returns every descriptor set of the tree to the context's allocator
// and destroys the constant buffers it created.
func (b *ParameterBlock) Release(ctx Context) {
	if b.constantBuffer != nil {
		ctx.DestroyBuffer(b.constantBuffer)
		b.constantBuffer = nil
		b.uploadedEpoch = 0
	}
	for i, set := range b.sets {
		if set != nil {
			ctx.Descriptors().FreeDescriptorSet(set.Native, set.Layout)
			b.sets[i] = nil
		}
	}
	for _, elems := range b.subBlocks {
		for _, sub := range elems {
			sub.Release(ctx)
		}
	}
}
