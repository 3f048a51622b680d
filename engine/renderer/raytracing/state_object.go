package raytracing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/**
 * @brief A ray tracing pipeline state object. Hands out the shader
 * identifiers of the entry-point groups it was created from.
 */
type StateObject struct {
	ID             uuid.UUID
	kernels        *program.Kernels
	identifierSize uint32
}

func NewStateObject(kernels *program.Kernels) (*StateObject, error) {
	if kernels == nil {
		return nil, core.NewBindingError(core.ErrKindMissingKernels, "NewStateObject", "no kernels")
	}
	if kernels.Kind != program.ProgramKindRayTracing {
		return nil, core.NewBindingError(core.ErrKindProgramKind, "NewStateObject", "kernels of a %s program", kernels.Kind)
	}
	so := &StateObject{ID: uuid.New(), kernels: kernels}
	for i := 0; i < kernels.UniqueEntryPointGroupCount(); i++ {
		n := uint32(len(kernels.UniqueEntryPointGroup(i).ShaderIdentifier))
		if so.identifierSize == 0 {
			so.identifierSize = n
		} else if n != so.identifierSize {
			return nil, fmt.Errorf("entry point group %d identifier is %d bytes, expected %d: %w", i, n, so.identifierSize, core.ErrShaderTable)
		}
	}
	return so, nil
}

func (so *StateObject) Kernels() *program.Kernels {
	return so.kernels
}

func (so *StateObject) ShaderIdentifierSize() uint32 {
	return so.identifierSize
}

func (so *StateObject) ShaderIdentifier(groupIndex int) ([]byte, error) {
	group := so.kernels.UniqueEntryPointGroup(groupIndex)
	if group == nil {
		return nil, core.NewBindingError(core.ErrKindMissingEntryPoint, "ShaderIdentifier", "no entry point group %d", groupIndex)
	}
	return group.ShaderIdentifier, nil
}
