package raytracing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/math"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/** @brief The sub-tables of a shader table, in memory order. */
type SubTableType uint8

const (
	SubTableRayGen SubTableType = iota
	SubTableMiss
	SubTableHit
	subTableCount
)

func (s SubTableType) String() string {
	switch s {
	case SubTableRayGen:
		return "raygen"
	case SubTableMiss:
		return "miss"
	case SubTableHit:
		return "hit"
	default:
		return fmt.Sprintf("SubTableType(%d)", uint8(s))
	}
}

type subTable struct {
	offset      uint32
	recordCount uint32
}

/**
 * @brief Contiguous buffer of shader records for ray-gen, miss and hit
 * groups. Each record holds one shader identifier padded to the record
 * stride; a zeroed record is never executed.
 */
type ShaderTable struct {
	recordAlignment uint32
	tableAlignment  uint32

	stateObject *StateObject
	subTables   [subTableCount]subTable
	recordSize  uint32
	data        []byte
	buffer      *program.Buffer
	generation  uint64
}

func NewShaderTable(config core.BinderConfig) *ShaderTable {
	return &ShaderTable{
		recordAlignment: config.ShaderRecordAlignment,
		tableAlignment:  config.ShaderTableAlignment,
	}
}

// Update lays the table out for the vars' record counts and the state
// object's identifier size, and clears every record.
func (st *ShaderTable) Update(ctx program.Context, rtso *StateObject, vars *RtProgramVars) error {
	st.recordSize = math.AlignUp(rtso.ShaderIdentifierSize(), st.recordAlignment)

	counts := [subTableCount]uint32{
		SubTableRayGen: 1,
		SubTableMiss:   vars.MissRecordCount(),
		SubTableHit:    vars.HitRecordCount(),
	}
	offset := uint32(0)
	for i := range st.subTables {
		offset = math.AlignUp(offset, st.tableAlignment)
		st.subTables[i] = subTable{offset: offset, recordCount: counts[i]}
		offset += counts[i] * st.recordSize
	}
	size := math.AlignUp(offset, st.tableAlignment)

	if uint32(len(st.data)) != size {
		st.data = make([]byte, size)
	} else {
		clear(st.data)
	}

	if st.buffer == nil || st.buffer.Size < uint64(size) {
		buf, err := ctx.CreateBuffer(fmt.Sprintf("shader_table_%s", uuid.NewString()), uint64(size))
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrShaderTable, err)
		}
		if st.buffer != nil {
			ctx.DestroyBuffer(st.buffer)
		}
		st.buffer = buf
	}

	st.stateObject = rtso
	st.generation++
	return nil
}

// RecordPtr returns the bytes of one record, nil when out of range.
func (st *ShaderTable) RecordPtr(t SubTableType, index uint32) []byte {
	if t >= subTableCount || index >= st.subTables[t].recordCount {
		return nil
	}
	start := st.subTables[t].offset + index*st.recordSize
	return st.data[start : start+st.recordSize]
}

// Flush uploads the table to its GPU buffer.
func (st *ShaderTable) Flush(ctx program.Context) error {
	if st.buffer == nil {
		return fmt.Errorf("flush before update: %w", core.ErrShaderTable)
	}
	if err := ctx.UpdateBuffer(st.buffer, 0, st.data); err != nil {
		return fmt.Errorf("%w: %v", core.ErrShaderTable, err)
	}
	return nil
}

// Release destroys the GPU buffer. The next Update allocates a new one.
func (st *ShaderTable) Release(ctx program.Context) {
	if st.buffer != nil {
		ctx.DestroyBuffer(st.buffer)
		st.buffer = nil
	}
}

func (st *ShaderTable) StateObject() *StateObject {
	return st.stateObject
}

// Generation counts the rebuilds of the table.
func (st *ShaderTable) Generation() uint64 {
	return st.generation
}

func (st *ShaderTable) RecordSize() uint32 {
	return st.recordSize
}

func (st *ShaderTable) SubTableOffset(t SubTableType) uint32 {
	return st.subTables[t].offset
}

func (st *ShaderTable) RecordCount(t SubTableType) uint32 {
	return st.subTables[t].recordCount
}

func (st *ShaderTable) Size() uint32 {
	return uint32(len(st.data))
}

func (st *ShaderTable) Buffer() *program.Buffer {
	return st.buffer
}

// Data returns the host copy of the table.
func (st *ShaderTable) Data() []byte {
	return st.data
}
