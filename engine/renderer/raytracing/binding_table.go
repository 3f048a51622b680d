package raytracing

import (
	"fmt"

	"github.com/spaghettifunk/shaderbind/engine/core"
)

/**
 * @brief Reference to an entry-point group of a ray tracing program.
 */
type ShaderID struct {
	GroupIndex int
}

// InvalidShaderID marks an unused slot.
var InvalidShaderID = ShaderID{GroupIndex: -1}

func (id ShaderID) IsValid() bool {
	return id.GroupIndex >= 0
}

/**
 * @brief Assigns entry-point groups to the ray-gen slot, the miss slots and
 * the (ray type, geometry) hit slots of a shader table.
 */
type BindingTable struct {
	rayTypeCount  uint32
	geometryCount uint32

	rayGen ShaderID
	miss   []ShaderID
	hit    []ShaderID
}

func NewBindingTable(missCount, rayTypeCount, geometryCount uint32) *BindingTable {
	t := &BindingTable{
		rayTypeCount:  rayTypeCount,
		geometryCount: geometryCount,
		rayGen:        InvalidShaderID,
		miss:          make([]ShaderID, missCount),
		hit:           make([]ShaderID, rayTypeCount*geometryCount),
	}
	for i := range t.miss {
		t.miss[i] = InvalidShaderID
	}
	for i := range t.hit {
		t.hit[i] = InvalidShaderID
	}
	return t
}

func (t *BindingTable) MissCount() uint32     { return uint32(len(t.miss)) }
func (t *BindingTable) RayTypeCount() uint32  { return t.rayTypeCount }
func (t *BindingTable) GeometryCount() uint32 { return t.geometryCount }

func (t *BindingTable) SetRayGen(id ShaderID) {
	t.rayGen = id
}

func (t *BindingTable) RayGen() ShaderID {
	return t.rayGen
}

func (t *BindingTable) SetMiss(missIndex uint32, id ShaderID) error {
	if missIndex >= uint32(len(t.miss)) {
		return fmt.Errorf("miss index %d of %d: %w", missIndex, len(t.miss), core.ErrOutOfRange)
	}
	t.miss[missIndex] = id
	return nil
}

func (t *BindingTable) Miss(missIndex uint32) ShaderID {
	if missIndex >= uint32(len(t.miss)) {
		return InvalidShaderID
	}
	return t.miss[missIndex]
}

// HitIndex is the flat index of a hit slot: rayType + rayTypeCount*geometryID.
func (t *BindingTable) HitIndex(rayType, geometryID uint32) uint32 {
	return rayType + t.rayTypeCount*geometryID
}

func (t *BindingTable) SetHitGroup(rayType, geometryID uint32, id ShaderID) error {
	if rayType >= t.rayTypeCount || geometryID >= t.geometryCount {
		return fmt.Errorf("hit group (ray type %d, geometry %d) of (%d, %d): %w", rayType, geometryID, t.rayTypeCount, t.geometryCount, core.ErrOutOfRange)
	}
	t.hit[t.HitIndex(rayType, geometryID)] = id
	return nil
}

func (t *BindingTable) HitGroup(rayType, geometryID uint32) ShaderID {
	if rayType >= t.rayTypeCount || geometryID >= t.geometryCount {
		return InvalidShaderID
	}
	return t.hit[t.HitIndex(rayType, geometryID)]
}
