package recording

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/math"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

var ErrInjected = errors.New("injected failure")

/** @brief The kind of a recorded command. */
type Op uint8

const (
	OpSetGraphicsRootSignature Op = iota
	OpSetComputeRootSignature
	OpGraphicsDescriptorTable
	OpComputeDescriptorTable
	OpGraphicsShaderResourceView
	OpGraphicsUnorderedAccessView
	OpComputeShaderResourceView
	OpComputeUnorderedAccessView
	OpGraphicsRootConstants
	OpComputeRootConstants
	OpDispatch
)

var opNames = map[Op]string{
	OpSetGraphicsRootSignature:    "SetGraphicsRootSignature",
	OpSetComputeRootSignature:     "SetComputeRootSignature",
	OpGraphicsDescriptorTable:     "SetGraphicsRootDescriptorTable",
	OpComputeDescriptorTable:      "SetComputeRootDescriptorTable",
	OpGraphicsShaderResourceView:  "SetGraphicsRootShaderResourceView",
	OpGraphicsUnorderedAccessView: "SetGraphicsRootUnorderedAccessView",
	OpComputeShaderResourceView:   "SetComputeRootShaderResourceView",
	OpComputeUnorderedAccessView:  "SetComputeRootUnorderedAccessView",
	OpGraphicsRootConstants:       "SetGraphicsRoot32BitConstants",
	OpComputeRootConstants:        "SetComputeRoot32BitConstants",
	OpDispatch:                    "Dispatch",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

/**
 * @brief One recorded command list call.
 */
type Command struct {
	Op            Op
	RootIndex     uint32
	RootSignature *program.RootSignature
	Set           *program.DescriptorSet
	Address       uint64
	Words         []uint32
	DestOffset    uint32
	Groups        [3]uint32
}

func (c Command) String() string {
	switch c.Op {
	case OpSetGraphicsRootSignature, OpSetComputeRootSignature:
		return fmt.Sprintf("%s(%s)", c.Op, c.RootSignature.ID)
	case OpGraphicsDescriptorTable, OpComputeDescriptorTable:
		return fmt.Sprintf("%s(%d, %s)", c.Op, c.RootIndex, c.Set.ID)
	case OpGraphicsRootConstants, OpComputeRootConstants:
		return fmt.Sprintf("%s(%d, %d words)", c.Op, c.RootIndex, len(c.Words))
	case OpDispatch:
		return fmt.Sprintf("%s(%d, %d, %d)", c.Op, c.Groups[0], c.Groups[1], c.Groups[2])
	default:
		return fmt.Sprintf("%s(%d, 0x%x)", c.Op, c.RootIndex, c.Address)
	}
}

/**
 * @brief A command list that keeps every call in order.
 */
type CommandList struct {
	Commands []Command
}

func (cl *CommandList) record(c Command) {
	cl.Commands = append(cl.Commands, c)
}

func (cl *CommandList) SetGraphicsRootSignature(rs *program.RootSignature) {
	cl.record(Command{Op: OpSetGraphicsRootSignature, RootSignature: rs})
}

func (cl *CommandList) SetComputeRootSignature(rs *program.RootSignature) {
	cl.record(Command{Op: OpSetComputeRootSignature, RootSignature: rs})
}

func (cl *CommandList) SetGraphicsRootDescriptorTable(rootIndex uint32, set *program.DescriptorSet) {
	cl.record(Command{Op: OpGraphicsDescriptorTable, RootIndex: rootIndex, Set: set})
}

func (cl *CommandList) SetComputeRootDescriptorTable(rootIndex uint32, set *program.DescriptorSet) {
	cl.record(Command{Op: OpComputeDescriptorTable, RootIndex: rootIndex, Set: set})
}

func (cl *CommandList) SetGraphicsRootShaderResourceView(rootIndex uint32, address uint64) {
	cl.record(Command{Op: OpGraphicsShaderResourceView, RootIndex: rootIndex, Address: address})
}

func (cl *CommandList) SetGraphicsRootUnorderedAccessView(rootIndex uint32, address uint64) {
	cl.record(Command{Op: OpGraphicsUnorderedAccessView, RootIndex: rootIndex, Address: address})
}

func (cl *CommandList) SetComputeRootShaderResourceView(rootIndex uint32, address uint64) {
	cl.record(Command{Op: OpComputeShaderResourceView, RootIndex: rootIndex, Address: address})
}

func (cl *CommandList) SetComputeRootUnorderedAccessView(rootIndex uint32, address uint64) {
	cl.record(Command{Op: OpComputeUnorderedAccessView, RootIndex: rootIndex, Address: address})
}

func (cl *CommandList) SetGraphicsRoot32BitConstants(rootIndex uint32, words []uint32, destOffset uint32) {
	cl.record(Command{Op: OpGraphicsRootConstants, RootIndex: rootIndex, Words: append([]uint32(nil), words...), DestOffset: destOffset})
}

func (cl *CommandList) SetComputeRoot32BitConstants(rootIndex uint32, words []uint32, destOffset uint32) {
	cl.record(Command{Op: OpComputeRootConstants, RootIndex: rootIndex, Words: append([]uint32(nil), words...), DestOffset: destOffset})
}

func (cl *CommandList) Dispatch(x, y, z uint32) {
	cl.record(Command{Op: OpDispatch, Groups: [3]uint32{x, y, z}})
}

// Filter returns the recorded commands with one of the given ops, in order.
func (cl *CommandList) Filter(ops ...Op) []Command {
	var out []Command
	for _, c := range cl.Commands {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (cl *CommandList) Reset() {
	cl.Commands = cl.Commands[:0]
}

/**
 * @brief A descriptor set living in host memory.
 */
type HeapSet struct {
	Index       int
	Layout      *metadata.DescriptorSetLayout
	Descriptors []program.DescriptorWrite
	Writes      int
}

/**
 * @brief Host memory descriptor heap. Counts allocations and writes.
 */
type DescriptorHeap struct {
	Allocated int
	Freed     int
	Writes    int
	/** @brief Makes the next allocation fail when set. */
	FailAllocation bool
}

func (h *DescriptorHeap) AllocateDescriptorSet(layout *metadata.DescriptorSetLayout) (interface{}, error) {
	if h.FailAllocation {
		return nil, ErrInjected
	}
	h.Allocated++
	return &HeapSet{Index: h.Allocated, Layout: layout}, nil
}

func (h *DescriptorHeap) WriteDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout, writes []program.DescriptorWrite) error {
	set, ok := native.(*HeapSet)
	if !ok {
		return fmt.Errorf("foreign descriptor set %T", native)
	}
	for _, w := range writes {
		if w.Range < 0 || w.Range >= layout.RangeCount() || w.ArrayIndex >= layout.Range(w.Range).DescCount {
			return fmt.Errorf("write to range %d element %d: %w", w.Range, w.ArrayIndex, core.ErrOutOfRange)
		}
	}
	set.Descriptors = append(set.Descriptors[:0], writes...)
	set.Writes++
	h.Writes++
	return nil
}

func (h *DescriptorHeap) FreeDescriptorSet(native interface{}, layout *metadata.DescriptorSetLayout) {
	h.Freed++
}

/**
 * @brief A command context that records into host memory. Buffers get
 * fake, aligned device addresses.
 */
type Context struct {
	commands    *CommandList
	heap        *DescriptorHeap
	allocator   *program.RecyclingAllocator
	nextAddress uint64

	liveBuffers map[*program.Buffer]struct{}

	BufferUpdates int
	/** @brief Number of batches submitted since creation. */
	Submitted int
	/** @brief Makes buffer updates fail when set. */
	FailBufferUpdate bool
}

const bufferAddressAlignment = 256

func NewContext(config core.BinderConfig) *Context {
	heap := &DescriptorHeap{}
	return &Context{
		commands:    &CommandList{},
		heap:        heap,
		allocator:   program.NewRecyclingAllocator(heap, config.DescriptorRecycleCapacity),
		liveBuffers: make(map[*program.Buffer]struct{}),
		nextAddress: 0x10000,
	}
}

// Begin starts a new batch and drops the commands of the previous one.
func (c *Context) Begin() error {
	c.commands.Reset()
	return nil
}

// Submit closes the current batch. The recorded commands stay readable until
// the next Begin.
func (c *Context) Submit() error {
	c.Submitted++
	core.LogDebug("submitted batch %d with %d commands", c.Submitted, len(c.commands.Commands))
	return nil
}

func (c *Context) Destroy() {}

func (c *Context) CommandList() program.CommandList {
	return c.commands
}

// Commands exposes the recorded command list.
func (c *Context) Commands() *CommandList {
	return c.commands
}

func (c *Context) Descriptors() program.DescriptorAllocator {
	return c.allocator
}

func (c *Context) Heap() *DescriptorHeap {
	return c.heap
}

func (c *Context) CreateBuffer(name string, size uint64) (*program.Buffer, error) {
	b := program.NewBuffer(name, size)
	b.Address = c.nextAddress
	b.Native = make([]byte, size)
	c.nextAddress = math.AlignUp(c.nextAddress+size, bufferAddressAlignment)
	c.liveBuffers[b] = struct{}{}
	return b, nil
}

// DestroyBuffer drops the host copy of a buffer. Later updates fail.
func (c *Context) DestroyBuffer(buffer *program.Buffer) {
	delete(c.liveBuffers, buffer)
	buffer.Native = nil
}

// LiveBuffers returns the number of buffers created and not destroyed yet.
func (c *Context) LiveBuffers() int {
	return len(c.liveBuffers)
}

func (c *Context) UpdateBuffer(buffer *program.Buffer, offset uint64, data []byte) error {
	if c.FailBufferUpdate {
		return ErrInjected
	}
	mem, ok := buffer.Native.([]byte)
	if !ok {
		return fmt.Errorf("buffer %q was not created by this context", buffer.Name)
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("update of %q [%d,%d): %w", buffer.Name, offset, offset+uint64(len(data)), core.ErrOutOfRange)
	}
	copy(mem[offset:], data)
	c.BufferUpdates++
	return nil
}

// BufferData returns the host copy of a buffer created by this context.
func BufferData(buffer *program.Buffer) []byte {
	mem, _ := buffer.Native.([]byte)
	return mem
}
