package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Not a recognised asset. */
	ResourceTypeNone ResourceType = iota
	/** @brief Binary resource type (e.g. compiled SPIR-V). */
	ResourceTypeBinary
	/** @brief Program reflection described in TOML. */
	ResourceTypeReflection
	/** @brief WGSL shader source, reflected with naga. */
	ResourceTypeShaderSource
	/** @brief Custom resource type. Used by loaders outside the core engine. */
	ResourceTypeCustom
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeReflection:
		return "reflection"
	case ResourceTypeShaderSource:
		return "shader_source"
	case ResourceTypeCustom:
		return "custom"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The type the resource was loaded as. */
	Type ResourceType
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

// Reflection returns the program reflection carried by the resource, if any.
func (r *Resource) Reflection() (*ProgramReflection, bool) {
	p, ok := r.Data.(*ProgramReflection)
	return p, ok
}
