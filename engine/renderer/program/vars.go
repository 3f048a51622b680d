package program

import (
	"github.com/spaghettifunk/shaderbind/engine/core"
)

func newProgramVars(op string, version *ProgramVersion, kind ProgramKind) (*ParameterBlock, error) {
	if version == nil {
		return nil, core.NewBindingError(core.ErrKindMissingKernels, op, "no program version")
	}
	if version.Program().Kind != kind {
		return nil, core.NewBindingError(core.ErrKindProgramKind, op, "program %q is a %s program", version.Program().Name, version.Program().Kind)
	}
	return NewParameterBlock(version, version.Reflection().DefaultParameterBlock), nil
}

/**
 * @brief Variables of a graphics program: the program's default parameter block.
 */
type GraphicsVars struct {
	*ParameterBlock
}

func NewGraphicsVars(version *ProgramVersion) (*GraphicsVars, error) {
	b, err := newProgramVars("NewGraphicsVars", version, ProgramKindGraphics)
	if err != nil {
		return nil, err
	}
	return &GraphicsVars{ParameterBlock: b}, nil
}

// Apply binds the vars for a draw. A nil kernels resolves them from the
// program version with the bound type arguments.
func (v *GraphicsVars) Apply(ctx Context, bindRootSig bool, kernels *Kernels) error {
	if kernels == nil {
		k, err := v.Kernels()
		if err != nil {
			return err
		}
		kernels = k
	}
	return applyProgramVarsCommon(v.ParameterBlock, ctx, bindRootSig, kernels, BindModeGraphics)
}

/**
 * @brief Variables of a compute program.
 */
type ComputeVars struct {
	*ParameterBlock
}

func NewComputeVars(version *ProgramVersion) (*ComputeVars, error) {
	b, err := newProgramVars("NewComputeVars", version, ProgramKindCompute)
	if err != nil {
		return nil, err
	}
	return &ComputeVars{ParameterBlock: b}, nil
}

func (v *ComputeVars) Apply(ctx Context, bindRootSig bool, kernels *Kernels) error {
	if kernels == nil {
		k, err := v.Kernels()
		if err != nil {
			return err
		}
		kernels = k
	}
	return applyProgramVarsCommon(v.ParameterBlock, ctx, bindRootSig, kernels, BindModeCompute)
}

// DispatchCompute applies the vars with their own kernels and records a
// dispatch. Nothing is dispatched when binding fails.
func (v *ComputeVars) DispatchCompute(ctx Context, threadGroupCount [3]uint32) error {
	if v.ProgramVersion() == nil || v.ProgramVersion().Program().Kind != ProgramKindCompute {
		return core.NewBindingError(core.ErrKindProgramKind, "DispatchCompute", "vars %q do not belong to a compute program", v.Reflector().Name())
	}
	kernels, err := v.Kernels()
	if err != nil {
		return err
	}
	if err := v.Apply(ctx, true, kernels); err != nil {
		return err
	}
	ctx.CommandList().Dispatch(threadGroupCount[0], threadGroupCount[1], threadGroupCount[2])
	return nil
}

// ApplyComputeBindings binds any parameter block tree in compute mode. Used
// for the global vars of a ray tracing program.
func ApplyComputeBindings(block *ParameterBlock, ctx Context, bindRootSig bool, kernels *Kernels) error {
	return applyProgramVarsCommon(block, ctx, bindRootSig, kernels, BindModeCompute)
}
