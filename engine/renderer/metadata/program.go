package metadata

import "fmt"

/** @brief The role of an entry-point group inside a ray-tracing program. */
type EntryPointGroupKind uint8

const (
	EntryPointGroupKindRayGen EntryPointGroupKind = iota
	EntryPointGroupKindMiss
	EntryPointGroupKindHitGroup
	EntryPointGroupKindCallable
	/** @brief A single graphics/compute entry point; not addressable by a shader table. */
	EntryPointGroupKindEntryPoint
)

func (k EntryPointGroupKind) String() string {
	switch k {
	case EntryPointGroupKindRayGen:
		return "raygen"
	case EntryPointGroupKindMiss:
		return "miss"
	case EntryPointGroupKindHitGroup:
		return "hitgroup"
	case EntryPointGroupKindCallable:
		return "callable"
	case EntryPointGroupKindEntryPoint:
		return "entrypoint"
	default:
		return fmt.Sprintf("EntryPointGroupKind(%d)", uint8(k))
	}
}

func EntryPointGroupKindFromString(s string) (EntryPointGroupKind, error) {
	switch s {
	case "raygen":
		return EntryPointGroupKindRayGen, nil
	case "miss":
		return EntryPointGroupKindMiss, nil
	case "hitgroup", "hit":
		return EntryPointGroupKindHitGroup, nil
	case "callable":
		return EntryPointGroupKindCallable, nil
	case "entrypoint", "":
		return EntryPointGroupKindEntryPoint, nil
	}
	return 0, fmt.Errorf("string %s is not a valid EntryPointGroupKind", s)
}

/**
 * @brief Reflection of a group of entry points (e.g. a hit group) that share
 * one local parameter block.
 */
type EntryPointGroupReflection struct {
	Name string
	Kind EntryPointGroupKind
	/** @brief Stages contained in the group. */
	Stages ShaderStage
	/** @brief The group's local parameter block. Never nil. */
	ParameterBlock *ParameterBlockReflection
}

/**
 * @brief Reflection of a whole program: its global parameter block plus its
 * entry-point groups, addressed by group index.
 */
type ProgramReflection struct {
	Name                  string
	DefaultParameterBlock *ParameterBlockReflection
	EntryPointGroups      []*EntryPointGroupReflection
}

func (p *ProgramReflection) EntryPointGroupCount() int {
	return len(p.EntryPointGroups)
}

// EntryPointGroup returns the group at the given index, or nil.
func (p *ProgramReflection) EntryPointGroup(groupIndex int) *EntryPointGroupReflection {
	if groupIndex < 0 || groupIndex >= len(p.EntryPointGroups) {
		return nil
	}
	return p.EntryPointGroups[groupIndex]
}

// FindEntryPointGroup returns the index of the group with the given name, or -1.
func (p *ProgramReflection) FindEntryPointGroup(name string) int {
	for i, g := range p.EntryPointGroups {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the invariants the binder relies on.
func (p *ProgramReflection) Validate() error {
	if p.DefaultParameterBlock == nil {
		return fmt.Errorf("program %q has no default parameter block", p.Name)
	}
	for i, g := range p.EntryPointGroups {
		if g == nil || g.ParameterBlock == nil {
			return fmt.Errorf("program %q: entry point group %d has no parameter block", p.Name, i)
		}
	}
	return nil
}
