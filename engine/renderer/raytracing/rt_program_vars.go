package raytracing

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/**
 * @brief Parameter block of one shader record, bound to an entry-point
 * group of the program.
 */
type EntryPointGroupVars struct {
	*program.ParameterBlock
	groupIndex int
}

// GroupIndex is the index of the entry-point group in the program.
func (v *EntryPointGroupVars) GroupIndex() int {
	return v.groupIndex
}

type shaderRecord struct {
	vars              *EntryPointGroupVars
	lastObservedEpoch uint64
}

type tableState uint8

const (
	tableStateNone tableState = iota
	tableStateCurrent
	tableStateStale
)

/**
 * @brief Variables of a ray tracing program: the global block plus one
 * parameter block per ray-gen, miss and hit record.
 */
type RtProgramVars struct {
	*program.ParameterBlock

	config        core.BinderConfig
	rayTypeCount  uint32
	geometryCount uint32

	rayGen shaderRecord
	miss   []shaderRecord
	hit    []shaderRecord

	uniqueGroupIndices []int
	shaderTable        *ShaderTable
	initialized        bool
}

func NewRtProgramVars(version *program.ProgramVersion, config core.BinderConfig) (*RtProgramVars, error) {
	if version == nil {
		return nil, core.NewBindingError(core.ErrKindMissingKernels, "NewRtProgramVars", "no program version")
	}
	if version.Program().Kind != program.ProgramKindRayTracing {
		return nil, core.NewBindingError(core.ErrKindProgramKind, "NewRtProgramVars", "program %q is a %s program", version.Program().Name, version.Program().Kind)
	}
	return &RtProgramVars{
		ParameterBlock: program.NewParameterBlock(version, version.Reflection().DefaultParameterBlock),
		config:         config,
	}, nil
}

func (v *RtProgramVars) newEntryPointGroupVars(id ShaderID) (*EntryPointGroupVars, error) {
	group := v.ProgramVersion().Reflection().EntryPointGroup(id.GroupIndex)
	if group == nil {
		return nil, core.NewBindingError(core.ErrKindMissingEntryPoint, "Init", "program %q has no entry point group %d", v.ProgramVersion().Program().Name, id.GroupIndex)
	}
	v.uniqueGroupIndices = append(v.uniqueGroupIndices, id.GroupIndex)
	return &EntryPointGroupVars{
		ParameterBlock: program.NewParameterBlock(v.ProgramVersion(), group.ParameterBlock),
		groupIndex:     id.GroupIndex,
	}, nil
}

// Init allocates one ray-gen record, a record per miss slot and
// rayTypeCount*geometryCount hit records. Unused miss and hit slots stay
// empty and are logged. Calling it again replaces every record; the shader
// table is rebuilt, and regrown if needed, on the next apply.
func (v *RtProgramVars) Init(table *BindingTable) error {
	if !table.RayGen().IsValid() {
		return core.NewBindingError(core.ErrKindMissingEntryPoint, "Init", "binding table has no ray generation shader")
	}

	v.uniqueGroupIndices = v.uniqueGroupIndices[:0]
	v.rayTypeCount = table.RayTypeCount()
	v.geometryCount = table.GeometryCount()
	v.initialized = false

	rayGen, err := v.newEntryPointGroupVars(table.RayGen())
	if err != nil {
		return err
	}
	v.rayGen = shaderRecord{vars: rayGen}

	v.miss = make([]shaderRecord, table.MissCount())
	for i := uint32(0); i < table.MissCount(); i++ {
		id := table.Miss(i)
		if !id.IsValid() {
			core.LogWarn("binding table has no shader at miss index %d", i)
			continue
		}
		if v.miss[i].vars, err = v.newEntryPointGroupVars(id); err != nil {
			return err
		}
	}

	v.hit = make([]shaderRecord, v.rayTypeCount*v.geometryCount)
	for geometryID := uint32(0); geometryID < v.geometryCount; geometryID++ {
		for rayType := uint32(0); rayType < v.rayTypeCount; rayType++ {
			id := table.HitGroup(rayType, geometryID)
			if !id.IsValid() {
				core.LogWarn("binding table has no hit group for ray type %d geometry %d", rayType, geometryID)
				continue
			}
			if v.hit[table.HitIndex(rayType, geometryID)].vars, err = v.newEntryPointGroupVars(id); err != nil {
				return err
			}
		}
	}

	slices.Sort(v.uniqueGroupIndices)
	v.uniqueGroupIndices = slices.Compact(v.uniqueGroupIndices)
	v.initialized = true
	return nil
}

func (v *RtProgramVars) RayTypeCount() uint32  { return v.rayTypeCount }
func (v *RtProgramVars) GeometryCount() uint32 { return v.geometryCount }

func (v *RtProgramVars) MissRecordCount() uint32 {
	return uint32(len(v.miss))
}

func (v *RtProgramVars) HitRecordCount() uint32 {
	return uint32(len(v.hit))
}

func (v *RtProgramVars) RayGenVars() *EntryPointGroupVars {
	return v.rayGen.vars
}

// MissVars returns the vars of a miss record, nil for an unused slot.
func (v *RtProgramVars) MissVars(missIndex uint32) *EntryPointGroupVars {
	if missIndex >= uint32(len(v.miss)) {
		return nil
	}
	return v.miss[missIndex].vars
}

// HitVars returns the vars of a hit record, nil for an unused slot.
func (v *RtProgramVars) HitVars(rayType, geometryID uint32) *EntryPointGroupVars {
	if rayType >= v.rayTypeCount || geometryID >= v.geometryCount {
		return nil
	}
	return v.hit[rayType+v.rayTypeCount*geometryID].vars
}

// UniqueEntryPointGroupIndices are the distinct, sorted group indices used
// by any record.
func (v *RtProgramVars) UniqueEntryPointGroupIndices() []int {
	return v.uniqueGroupIndices
}

// EntryPointGroupVars lists the vars of every record: ray-gen, then misses,
// then hits. Unused records are nil.
func (v *RtProgramVars) EntryPointGroupVars() []*EntryPointGroupVars {
	out := make([]*EntryPointGroupVars, 0, 1+len(v.miss)+len(v.hit))
	out = append(out, v.rayGen.vars)
	for _, r := range v.miss {
		out = append(out, r.vars)
	}
	for _, r := range v.hit {
		out = append(out, r.vars)
	}
	return out
}

func (v *RtProgramVars) ShaderTable() *ShaderTable {
	return v.shaderTable
}

func (v *RtProgramVars) tableState(rtso *StateObject) tableState {
	if v.shaderTable == nil {
		return tableStateNone
	}
	if v.shaderTable.StateObject() != rtso {
		core.LogDebug("shader table stale: state object changed")
		return tableStateStale
	}
	if v.rayGen.vars.ComputeEpochOfLastChange() != v.rayGen.lastObservedEpoch {
		core.LogDebug("shader table stale: ray generation record changed")
		return tableStateStale
	}
	return tableStateCurrent
}

func (v *RtProgramVars) applySubTable(rtso *StateObject, t SubTableType, records []shaderRecord) error {
	for i := range records {
		r := &records[i]
		if r.vars == nil {
			continue
		}
		r.lastObservedEpoch = r.vars.ComputeEpochOfLastChange()
		id, err := rtso.ShaderIdentifier(r.vars.groupIndex)
		if core.IsBindingError(err, core.ErrKindMissingEntryPoint) {
			// the state object was built without this group, the record stays zeroed
			core.LogDebug("%s record %d: state object has no group %d", t, i, r.vars.groupIndex)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s record %d: %w", t, i, err)
		}
		dst := v.shaderTable.RecordPtr(t, uint32(i))
		if dst == nil {
			return fmt.Errorf("%s record %d outside of table: %w", t, i, core.ErrShaderTable)
		}
		copy(dst, id)
	}
	return nil
}

func (v *RtProgramVars) rebuildShaderTable(ctx program.Context, rtso *StateObject) error {
	if v.shaderTable == nil {
		v.shaderTable = NewShaderTable(v.config)
	}
	if err := v.shaderTable.Update(ctx, rtso, v); err != nil {
		return err
	}

	rayGen := []shaderRecord{v.rayGen}
	if err := v.applySubTable(rtso, SubTableRayGen, rayGen); err != nil {
		return err
	}
	v.rayGen = rayGen[0]
	if err := v.applySubTable(rtso, SubTableMiss, v.miss); err != nil {
		return err
	}
	if err := v.applySubTable(rtso, SubTableHit, v.hit); err != nil {
		return err
	}

	if err := v.shaderTable.Flush(ctx); err != nil {
		return err
	}
	core.MetricsShaderTableRebuild()
	core.LogDebug("shader table rebuilt: generation %d, %d bytes", v.shaderTable.Generation(), v.shaderTable.Size())
	return nil
}

// Apply rebuilds the shader table when it is missing, was built for another
// state object or the ray-gen record changed, then binds the global vars in
// compute mode. On error rays must not be traced.
func (v *RtProgramVars) Apply(ctx program.Context, rtso *StateObject) error {
	if !v.initialized {
		return core.NewBindingError(core.ErrKindMissingEntryPoint, "Apply", "vars were not initialized with a binding table")
	}
	if rtso == nil {
		return core.NewBindingError(core.ErrKindMissingKernels, "Apply", "no ray tracing state object")
	}

	if v.tableState(rtso) == tableStateCurrent {
		core.MetricsShaderTableSkip()
	} else if err := v.rebuildShaderTable(ctx, rtso); err != nil {
		return err
	}

	return program.ApplyComputeBindings(v.ParameterBlock, ctx, true, rtso.Kernels())
}

// Release returns the descriptor sets of the global block and of every
// record to the context's allocator and destroys the shader table buffer.
func (v *RtProgramVars) Release(ctx program.Context) {
	if v.shaderTable != nil {
		v.shaderTable.Release(ctx)
	}
	v.ParameterBlock.Release(ctx)
	for _, r := range v.EntryPointGroupVars() {
		if r != nil {
			r.Release(ctx)
		}
	}
}
