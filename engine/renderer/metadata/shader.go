package metadata

import "strings"

/** @brief Shader stages available in the system. Used as a visibility mask. */
type ShaderStage uint32

const (
	ShaderStageVertex       ShaderStage = 0x00000001
	ShaderStageGeometry     ShaderStage = 0x00000002
	ShaderStageFragment     ShaderStage = 0x00000004
	ShaderStageCompute      ShaderStage = 0x00000008
	ShaderStageRayGen       ShaderStage = 0x00000010
	ShaderStageMiss         ShaderStage = 0x00000020
	ShaderStageClosestHit   ShaderStage = 0x00000040
	ShaderStageAnyHit       ShaderStage = 0x00000080
	ShaderStageIntersection ShaderStage = 0x00000100

	ShaderStageAllGraphics   = ShaderStageVertex | ShaderStageGeometry | ShaderStageFragment
	ShaderStageAllRayTracing = ShaderStageRayGen | ShaderStageMiss | ShaderStageClosestHit | ShaderStageAnyHit | ShaderStageIntersection
	ShaderStageAll           = ShaderStageAllGraphics | ShaderStageCompute | ShaderStageAllRayTracing
)

var shaderStageNames = []struct {
	stage ShaderStage
	name  string
}{
	{ShaderStageVertex, "vertex"},
	{ShaderStageGeometry, "geometry"},
	{ShaderStageFragment, "fragment"},
	{ShaderStageCompute, "compute"},
	{ShaderStageRayGen, "raygen"},
	{ShaderStageMiss, "miss"},
	{ShaderStageClosestHit, "closesthit"},
	{ShaderStageAnyHit, "anyhit"},
	{ShaderStageIntersection, "intersection"},
}

func (s ShaderStage) String() string {
	if s == ShaderStageAll {
		return "all"
	}
	var parts []string
	for _, n := range shaderStageNames {
		if s&n.stage != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ShaderStageFromString parses a single stage name, or "all".
func ShaderStageFromString(s string) (ShaderStage, bool) {
	if s == "all" || s == "" {
		return ShaderStageAll, true
	}
	for _, n := range shaderStageNames {
		if n.name == s {
			return n.stage, true
		}
	}
	return 0, false
}
