package program

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shaderbind/engine/containers"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

/**
 * @brief An allocated GPU-visible descriptor table and the epoch of the
 * owning block at which it was last written.
 */
type DescriptorSet struct {
	ID     uuid.UUID
	Layout *metadata.DescriptorSetLayout
	/** @brief Backend handle returned by the allocator. */
	Native interface{}

	writtenEpoch uint64
	written      bool
}

func allocateDescriptorSet(alloc DescriptorAllocator, layout *metadata.DescriptorSetLayout) (*DescriptorSet, error) {
	native, err := alloc.AllocateDescriptorSet(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDescriptorAllocation, err)
	}
	return &DescriptorSet{
		ID:     uuid.New(),
		Layout: layout,
		Native: native,
	}, nil
}

// needsWrite reports whether the set content is older than the given epoch.
func (s *DescriptorSet) needsWrite(epoch uint64) bool {
	return !s.written || s.writtenEpoch != epoch
}

func (s *DescriptorSet) markWritten(epoch uint64) {
	s.written = true
	s.writtenEpoch = epoch
}

/**
 * @brief Wraps a DescriptorAllocator and keeps a bounded number of freed sets
 * per layout for reuse.
 */
type RecyclingAllocator struct {
	inner    DescriptorAllocator
	capacity int
	free     map[*metadata.DescriptorSetLayout]*containers.RingQueue[interface{}]
}

func NewRecyclingAllocator(inner DescriptorAllocator, capacity int) *RecyclingAllocator {
	return &RecyclingAllocator{
		inner:    inner,
		capacity: capacity,
		free:     make(map[*metadata.DescriptorSetLayout]*containers.RingQueue[interface{}]),
	}
}

func (a *RecyclingAllocator) AllocateDescriptorSet(layout *metadata.DescriptorSetLayout) (interface{}, error) {
	if q, ok := a.free[layout]; ok {
		native, err := q.Dequeue()
		if err == nil {
			return native, nil
		}
		if !errors.Is(err, containers.ErrQueueEmpty) {
			return nil, err
		}
	}
	return a.inner.AllocateDescriptorSet(layout)
}

func (a *RecyclingAllocator) WriteDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout, writes []DescriptorWrite) error {
	return a.inner.WriteDescriptorSet(native, layout, writes)
}

// FreeDescriptorSet keeps the set for reuse, or releases it to the wrapped
// allocator once the per-layout queue is full.
func (a *RecyclingAllocator) FreeDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout) {
	q, ok := a.free[layout]
	if !ok {
		q = containers.NewRingQueue[interface{}](a.capacity)
		a.free[layout] = q
	}
	if err := q.Enqueue(native); err != nil {
		a.inner.FreeDescriptorSet(native, layout)
	}
}

// Recycled returns the number of sets waiting for reuse for a layout.
func (a *RecyclingAllocator) Recycled(layout *metadata.DescriptorSetLayout) int {
	if q, ok := a.free[layout]; ok {
		return q.Len()
	}
	return 0
}
