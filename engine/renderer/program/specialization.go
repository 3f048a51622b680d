package program

import (
	"strconv"
	"strings"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

// collectSpecializationArgs gathers the type arguments of the tree in
// pre-order: the block's own slots first, then nested blocks in declaration
// order.
func (b *ParameterBlock) collectSpecializationArgs(args []SpecializationArg) []SpecializationArg {
	args = append(args, b.typeArgs...)
	for _, elems := range b.subBlocks {
		for _, sub := range elems {
			args = sub.collectSpecializationArgs(args)
		}
	}
	return args
}

// SpecializationArgs returns the type arguments bound anywhere in the tree.
func (b *ParameterBlock) SpecializationArgs() []SpecializationArg {
	return b.collectSpecializationArgs(nil)
}

// SpecializedReflector returns the reflector to bind with. Without type
// arguments it is the block's own reflector; otherwise it is the default
// block of the kernels specialized for the arguments. The result is kept
// until the tree changes.
func (b *ParameterBlock) SpecializedReflector() (*metadata.ParameterBlockReflection, error) {
	epoch := b.ComputeEpochOfLastChange()
	if b.specialized != nil && b.specializedEpoch == epoch {
		return b.specialized, nil
	}

	args := b.SpecializationArgs()
	if len(args) == 0 {
		b.specialized = b.reflector
		b.specializedEpoch = epoch
		return b.specialized, nil
	}

	if b.version == nil {
		return nil, core.NewBindingError(core.ErrKindMissingKernels, "SpecializedReflector", "%q has type arguments but no program version", b.reflector.Name())
	}
	kernels, err := b.version.Kernels(args)
	if err != nil {
		return nil, err
	}
	b.specialized = kernels.Reflector().DefaultParameterBlock
	b.specializedEpoch = epoch
	return b.specialized, nil
}

// Kernels resolves the kernels of the block's program version for the
// currently bound type arguments.
func (b *ParameterBlock) Kernels() (*Kernels, error) {
	if b.version == nil {
		return nil, core.NewBindingError(core.ErrKindMissingKernels, "Kernels", "%q has no program version", b.reflector.Name())
	}
	return b.version.Kernels(b.SpecializationArgs())
}

// specializationKey is the canonical cache key of an argument list.
func specializationKey(args []SpecializationArg) string {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(a.Type)
		sb.WriteByte('@')
		sb.WriteString(strconv.FormatUint(uint64(a.Slot), 10))
	}
	return sb.String()
}
