package program

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

/** @brief The kind of pipeline a program builds. */
type ProgramKind uint8

const (
	ProgramKindGraphics ProgramKind = iota
	ProgramKindCompute
	ProgramKindRayTracing
)

func (k ProgramKind) String() string {
	switch k {
	case ProgramKindGraphics:
		return "graphics"
	case ProgramKindCompute:
		return "compute"
	case ProgramKindRayTracing:
		return "raytracing"
	default:
		return fmt.Sprintf("ProgramKind(%d)", uint8(k))
	}
}

func ProgramKindFromString(s string) (ProgramKind, error) {
	switch s {
	case "graphics":
		return ProgramKindGraphics, nil
	case "compute":
		return ProgramKindCompute, nil
	case "raytracing", "ray_tracing":
		return ProgramKindRayTracing, nil
	}
	return 0, fmt.Errorf("string %s is not a valid ProgramKind", s)
}

/**
 * @brief A shader program as declared by its reflection.
 */
type Program struct {
	Name       string
	Kind       ProgramKind
	Reflection *metadata.ProgramReflection
}

func NewProgram(kind ProgramKind, reflection *metadata.ProgramReflection) (*Program, error) {
	if reflection == nil {
		return nil, fmt.Errorf("program without reflection: %w", core.ErrNotFound)
	}
	if err := reflection.Validate(); err != nil {
		return nil, err
	}
	return &Program{
		Name:       reflection.Name,
		Kind:       kind,
		Reflection: reflection,
	}, nil
}

// DispatchCompute binds the compute vars and records a dispatch.
func (p *Program) DispatchCompute(ctx Context, vars *ComputeVars, threadGroupCount [3]uint32) error {
	if p.Kind != ProgramKindCompute {
		return core.NewBindingError(core.ErrKindProgramKind, "DispatchCompute", "program %q is a %s program", p.Name, p.Kind)
	}
	if vars.ProgramVersion() == nil || vars.ProgramVersion().Program() != p {
		return core.NewBindingError(core.ErrKindMissingKernels, "DispatchCompute", "vars were not created for program %q", p.Name)
	}
	return vars.DispatchCompute(ctx, threadGroupCount)
}

/**
 * @brief Kernels compiled for one entry-point group.
 */
type EntryPointGroupKernels struct {
	GroupIndex int
	Name       string
	Kind       metadata.EntryPointGroupKind
	/** @brief Opaque, fixed-size shader identifier. */
	ShaderIdentifier []byte
}

/**
 * @brief The compiled form of a program version for one set of
 * specialization arguments.
 */
type Kernels struct {
	Kind          ProgramKind
	reflector     *metadata.ProgramReflection
	rootSignature *RootSignature
	groups        []*EntryPointGroupKernels
}

func NewKernels(kind ProgramKind, reflector *metadata.ProgramReflection, rs *RootSignature, groups []*EntryPointGroupKernels) *Kernels {
	return &Kernels{
		Kind:          kind,
		reflector:     reflector,
		rootSignature: rs,
		groups:        groups,
	}
}

func (k *Kernels) Reflector() *metadata.ProgramReflection {
	return k.reflector
}

func (k *Kernels) RootSignature() *RootSignature {
	return k.rootSignature
}

func (k *Kernels) UniqueEntryPointGroupCount() int {
	return len(k.groups)
}

// UniqueEntryPointGroup returns the kernels of a group by its index in the
// program, or nil.
func (k *Kernels) UniqueEntryPointGroup(groupIndex int) *EntryPointGroupKernels {
	if groupIndex < 0 || groupIndex >= len(k.groups) {
		return nil
	}
	return k.groups[groupIndex]
}

/**
 * @brief Produces kernels for a program and a set of specialization
 * arguments.
 */
type KernelCompiler interface {
	Compile(program *Program, reflection *metadata.ProgramReflection, args []SpecializationArg) (*Kernels, error)
}

/**
 * @brief A program together with its current reflection and the kernels
 * compiled from it, memoized by specialization arguments.
 */
type ProgramVersion struct {
	program  *Program
	compiler KernelCompiler

	mu         sync.Mutex
	reflection *metadata.ProgramReflection
	kernels    map[string]*Kernels
}

func NewProgramVersion(program *Program, compiler KernelCompiler) *ProgramVersion {
	return &ProgramVersion{
		program:    program,
		compiler:   compiler,
		reflection: program.Reflection,
		kernels:    make(map[string]*Kernels),
	}
}

func (v *ProgramVersion) Program() *Program {
	return v.program
}

func (v *ProgramVersion) Reflection() *metadata.ProgramReflection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reflection
}

// Kernels returns the kernels for the arguments, compiling them on the
// first request.
func (v *ProgramVersion) Kernels(args []SpecializationArg) (*Kernels, error) {
	key := specializationKey(args)

	v.mu.Lock()
	defer v.mu.Unlock()
	if k, ok := v.kernels[key]; ok {
		core.MetricsSpecialization(true)
		return k, nil
	}
	core.MetricsSpecialization(false)

	if v.compiler == nil {
		return nil, core.NewBindingError(core.ErrKindMissingKernels, "Kernels", "program %q has no kernel compiler", v.program.Name)
	}
	k, err := v.compiler.Compile(v.program, v.reflection, args)
	if err != nil {
		return nil, fmt.Errorf("compile %q [%s]: %w", v.program.Name, key, err)
	}
	v.kernels[key] = k
	return k, nil
}

// Invalidate drops every compiled kernel. A non-nil reflection replaces the
// current one, e.g. after the reflection file was reloaded.
func (v *ProgramVersion) Invalidate(reflection *metadata.ProgramReflection) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if reflection != nil {
		v.reflection = reflection
	}
	v.kernels = make(map[string]*Kernels)
	core.LogInfo("program %q invalidated", v.program.Name)
}

/**
 * @brief Builds kernels straight from reflection: the root signature comes
 * from a shared cache and shader identifiers are derived from the program,
 * group and argument names.
 */
type DefaultCompiler struct {
	RootSignatures *RootSignatureCache
	IdentifierSize uint32
}

func NewDefaultCompiler(cache *RootSignatureCache, identifierSize uint32) *DefaultCompiler {
	return &DefaultCompiler{RootSignatures: cache, IdentifierSize: identifierSize}
}

var shaderIdentifierNamespace = uuid.MustParse("5b0c7e56-2d4f-4c4e-9d8e-2a7f3b1c6d90")

func (c *DefaultCompiler) Compile(program *Program, reflection *metadata.ProgramReflection, args []SpecializationArg) (*Kernels, error) {
	if reflection == nil || reflection.DefaultParameterBlock == nil {
		return nil, fmt.Errorf("program %q has no default parameter block: %w", program.Name, core.ErrNotFound)
	}
	rs := c.RootSignatures.Get(reflection.DefaultParameterBlock)

	key := specializationKey(args)
	groups := make([]*EntryPointGroupKernels, reflection.EntryPointGroupCount())
	for i, g := range reflection.EntryPointGroups {
		groups[i] = &EntryPointGroupKernels{
			GroupIndex:       i,
			Name:             g.Name,
			Kind:             g.Kind,
			ShaderIdentifier: c.shaderIdentifier(program.Name + "/" + g.Name + "/" + key),
		}
	}
	core.LogDebug("compiled %s program %q with %d entry point groups [%s]", program.Kind, program.Name, len(groups), key)
	return NewKernels(program.Kind, reflection, rs, groups), nil
}

// shaderIdentifier repeats a name based UUID up to the identifier size.
func (c *DefaultCompiler) shaderIdentifier(name string) []byte {
	id := uuid.NewSHA1(shaderIdentifierNamespace, []byte(name))
	out := make([]byte, c.IdentifierSize)
	for i := 0; i < len(out); i += len(id) {
		copy(out[i:], id[:])
	}
	return out
}
