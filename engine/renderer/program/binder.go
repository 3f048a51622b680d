package program

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/math"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

// BindMode selects which command list entry points the binder uses.
type BindMode uint8

const (
	BindModeGraphics BindMode = iota
	BindModeCompute
)

func (m BindMode) String() string {
	if m == BindModeCompute {
		return "compute"
	}
	return "graphics"
}

type rootBinder interface {
	bindRootSignature(ctx Context, rs *RootSignature)
	bindDescriptorTable(cl CommandList, rootIndex uint32, set *DescriptorSet)
	bindRootBufferView(cl CommandList, rootIndex uint32, address uint64, uav bool)
	bindRootConstants(cl CommandList, rootIndex uint32, words []uint32)
}

type graphicsBinder struct{}

func (graphicsBinder) bindRootSignature(ctx Context, rs *RootSignature) {
	rs.BindForGraphics(ctx)
}

func (graphicsBinder) bindDescriptorTable(cl CommandList, rootIndex uint32, set *DescriptorSet) {
	cl.SetGraphicsRootDescriptorTable(rootIndex, set)
}

func (graphicsBinder) bindRootBufferView(cl CommandList, rootIndex uint32, address uint64, uav bool) {
	if uav {
		cl.SetGraphicsRootUnorderedAccessView(rootIndex, address)
	} else {
		cl.SetGraphicsRootShaderResourceView(rootIndex, address)
	}
}

func (graphicsBinder) bindRootConstants(cl CommandList, rootIndex uint32, words []uint32) {
	cl.SetGraphicsRoot32BitConstants(rootIndex, words, 0)
}

type computeBinder struct{}

func (computeBinder) bindRootSignature(ctx Context, rs *RootSignature) {
	rs.BindForCompute(ctx)
}

func (computeBinder) bindDescriptorTable(cl CommandList, rootIndex uint32, set *DescriptorSet) {
	cl.SetComputeRootDescriptorTable(rootIndex, set)
}

func (computeBinder) bindRootBufferView(cl CommandList, rootIndex uint32, address uint64, uav bool) {
	if uav {
		cl.SetComputeRootUnorderedAccessView(rootIndex, address)
	} else {
		cl.SetComputeRootShaderResourceView(rootIndex, address)
	}
}

func (computeBinder) bindRootConstants(cl CommandList, rootIndex uint32, words []uint32) {
	cl.SetComputeRoot32BitConstants(rootIndex, words, 0)
}

func binderFor(mode BindMode) rootBinder {
	if mode == BindModeCompute {
		return computeBinder{}
	}
	return graphicsBinder{}
}

// bindCursor tracks the next free index of each root signature zone. It is
// shared by the whole traversal so indices stay monotonic across the tree.
type bindCursor struct {
	descSet   uint32
	rootDesc  uint32
	rootConst uint32
}

// rootConstantWords packs the block bytes into ceil(n/4) little endian words.
func rootConstantWords(data []byte) []uint32 {
	words := make([]uint32, math.DivCeil(uint32(len(data)), 4))
	var tail [4]byte
	for i := range words {
		chunk := data[i*4:]
		if len(chunk) < 4 {
			copy(tail[:], chunk)
			chunk = tail[:]
		}
		words[i] = binary.LittleEndian.Uint32(chunk)
	}
	return words
}

func bindDescriptorSetsAndRootConstants(b rootBinder, ctx Context, block *ParameterBlock, reflector *metadata.ParameterBlockReflection, rs *RootSignature, cursor *bindCursor) error {
	cl := ctx.CommandList()

	if reflector.DefaultConstantBufferBindingInfo().UseRootConstants {
		rootIndex := rs.RootConstantBaseIndex() + cursor.rootConst
		b.bindRootConstants(cl, rootIndex, rootConstantWords(block.RawData()))
		cursor.rootConst++
		core.MetricsRootConstantUpload()
	}

	for i := 0; i < reflector.DescriptorSetCount(); i++ {
		set := block.DescriptorSet(i)
		if set == nil {
			return fmt.Errorf("block %q set %d was not prepared: %w", reflector.Name(), i, core.ErrDescriptorAllocation)
		}
		b.bindDescriptorTable(cl, rs.DescriptorSetBaseIndex()+cursor.descSet, set)
		cursor.descSet++
		core.MetricsDescriptorTableBind()
	}

	for i := 0; i < reflector.ParameterBlockSubObjectRangeCount(); i++ {
		ri := reflector.ParameterBlockSubObjectRangeIndex(i)
		subReflector := reflector.BindingInfo(ri).SubObject
		for e := uint32(0); e < reflector.ResourceRange(ri).Count; e++ {
			sub, err := block.ParameterBlock(ri, e)
			if err != nil {
				return err
			}
			if err := bindDescriptorSetsAndRootConstants(b, ctx, sub, subReflector, rs, cursor); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindRootDescriptors(b rootBinder, ctx Context, block *ParameterBlock, reflector *metadata.ParameterBlockReflection, rs *RootSignature, cursor *bindCursor) error {
	const op = "bindRootDescriptors"
	cl := ctx.CommandList()

	for i := 0; i < reflector.RootDescriptorRangeCount(); i++ {
		ri := reflector.RootDescriptorRangeIndex(i)
		rr := reflector.ResourceRange(ri)
		if rr.Count != 1 {
			return core.NewBindingError(core.ErrKindRootDescriptorArray, op, "range %q of %q has %d elements", rr.Name, reflector.Name(), rr.Count)
		}

		res, uav, err := block.RootDescriptor(ri, 0)
		if err != nil {
			return err
		}
		var address uint64
		if res != nil {
			buf, ok := res.(*Buffer)
			if !ok {
				return core.NewBindingError(core.ErrKindRootDescriptorNotBuffer, op, "range %q of %q is bound to %q", rr.Name, reflector.Name(), res.ResourceName())
			}
			address = buf.GPUAddress()
		}

		b.bindRootBufferView(cl, rs.RootDescriptorBaseIndex()+cursor.rootDesc, address, uav)
		cursor.rootDesc++
		core.MetricsRootDescriptorBind()
	}

	for ri := 0; ri < reflector.ResourceRangeCount(); ri++ {
		info := reflector.BindingInfo(ri)
		if info.Flavor != metadata.FlavorConstantBuffer && info.Flavor != metadata.FlavorParameterBlock {
			continue
		}
		for e := uint32(0); e < reflector.ResourceRange(ri).Count; e++ {
			sub, err := block.ParameterBlock(ri, e)
			if err != nil {
				return err
			}
			if err := bindRootDescriptors(b, ctx, sub, info.SubObject, rs, cursor); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyProgramVarsCommon binds the whole block tree against the kernels'
// root signature. On error the command list may hold a partial set of binds
// and the dependent draw or dispatch must not be recorded.
func applyProgramVarsCommon(vars *ParameterBlock, ctx Context, bindRootSig bool, kernels *Kernels, mode BindMode) error {
	if kernels == nil {
		return core.NewBindingError(core.ErrKindMissingKernels, "apply", "no kernels for %q", vars.Reflector().Name())
	}
	b := binderFor(mode)
	rs := kernels.RootSignature()

	if bindRootSig {
		b.bindRootSignature(ctx, rs)
	}

	if err := vars.PrepareDescriptorSets(ctx); err != nil {
		return err
	}

	reflector, err := vars.SpecializedReflector()
	if err != nil {
		return err
	}

	var cursor bindCursor
	if err := bindDescriptorSetsAndRootConstants(b, ctx, vars, reflector, rs, &cursor); err != nil {
		return err
	}
	if err := bindRootDescriptors(b, ctx, vars, reflector, rs, &cursor); err != nil {
		return err
	}
	return nil
}
