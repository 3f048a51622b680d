package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

/**
 * @brief Reflects a WGSL shader source into a program reflection. Every
 * bound global becomes a resource range of the default block, a push
 * constant global becomes its root constants, and every entry point becomes
 * an entry-point group without local parameters.
 */
type WGSLLoader struct{}

func (wl *WGSLLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	reflection, err := ReflectWGSL(name, string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &metadata.Resource{
		Name:     name,
		Type:     metadata.ResourceTypeShaderSource,
		FullPath: path,
		DataSize: uint64(len(source)),
		Data:     reflection,
	}, nil
}

func (wl *WGSLLoader) Unload(*metadata.Resource) error {
	return nil
}

// ReflectWGSL parses and lowers WGSL source and reflects its bindings.
func ReflectWGSL(name, source string) (*metadata.ProgramReflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	return reflectModule(name, module)
}

func reflectModule(name string, module *ir.Module) (*metadata.ProgramReflection, error) {
	config := metadata.ParameterBlockReflectionConfig{
		Name:       name,
		Visibility: moduleVisibility(module),
	}

	for _, g := range module.GlobalVariables {
		if g.Space == ir.SpacePushConstant {
			if config.UseRootConstants {
				return nil, fmt.Errorf("%s: more than one push constant block: %w", g.Name, core.ErrInvalidBinding)
			}
			config.UseRootConstants = true
			config.ElementByteSize = typeSize(module, g.Type)
			config.Variables = pushConstantVariables(module, g)
			continue
		}
		if g.Binding == nil {
			continue
		}
		rc, ok := globalRange(module, g)
		if !ok {
			core.LogWarn("global %q in address space %d has no binding equivalent, skipping", g.Name, g.Space)
			continue
		}
		config.Ranges = append(config.Ranges, rc)
	}

	// Group and binding order, independent of declaration order.
	sort.SliceStable(config.Ranges, func(i, j int) bool {
		a, b := config.Ranges[i], config.Ranges[j]
		if a.Space != b.Space {
			return a.Space < b.Space
		}
		return a.BaseIndex < b.BaseIndex
	})

	global, err := metadata.NewParameterBlockReflection(config)
	if err != nil {
		return nil, err
	}

	program := &metadata.ProgramReflection{
		Name:                  name,
		DefaultParameterBlock: global,
	}
	for _, ep := range module.EntryPoints {
		local, err := metadata.NewParameterBlockReflection(metadata.ParameterBlockReflectionConfig{Name: ep.Name})
		if err != nil {
			return nil, err
		}
		program.EntryPointGroups = append(program.EntryPointGroups, &metadata.EntryPointGroupReflection{
			Name:           ep.Name,
			Kind:           metadata.EntryPointGroupKindEntryPoint,
			Stages:         shaderStage(ep.Stage),
			ParameterBlock: local,
		})
	}

	core.LogDebug("wgsl %q reflected: %d ranges, %d entry points", name, len(config.Ranges), len(program.EntryPointGroups))
	return program, nil
}

func globalRange(module *ir.Module, g ir.GlobalVariable) (metadata.ResourceRangeConfig, bool) {
	rc := metadata.ResourceRangeConfig{
		Name:      g.Name,
		Flavor:    metadata.FlavorSimple,
		Count:     1,
		BaseIndex: g.Binding.Binding,
		Space:     g.Binding.Group,
	}

	inner := module.Types[g.Type].Inner
	if arr, ok := inner.(ir.ArrayType); ok && arr.Size.Constant != nil && g.Space == ir.SpaceHandle {
		rc.Count = *arr.Size.Constant
		inner = module.Types[arr.Base].Inner
	}

	switch g.Space {
	case ir.SpaceUniform:
		rc.DescriptorType = metadata.DescriptorTypeConstantBuffer
	case ir.SpaceStorage:
		rc.DescriptorType = metadata.DescriptorTypeUnorderedAccess
	case ir.SpaceHandle:
		switch t := inner.(type) {
		case ir.SamplerType:
			rc.DescriptorType = metadata.DescriptorTypeSampler
		case ir.ImageType:
			if t.Class == ir.ImageClassStorage {
				rc.DescriptorType = metadata.DescriptorTypeUnorderedAccess
			} else {
				rc.DescriptorType = metadata.DescriptorTypeShaderResource
			}
		default:
			return rc, false
		}
	default:
		return rc, false
	}
	return rc, true
}

func pushConstantVariables(module *ir.Module, g ir.GlobalVariable) []metadata.VariableReflection {
	st, ok := module.Types[g.Type].Inner.(ir.StructType)
	if !ok {
		return []metadata.VariableReflection{{
			Name: g.Name,
			Size: typeSize(module, g.Type),
			Type: typeName(module, g.Type),
		}}
	}
	vars := make([]metadata.VariableReflection, 0, len(st.Members))
	for _, m := range st.Members {
		vars = append(vars, metadata.VariableReflection{
			Name:   m.Name,
			Offset: m.Offset,
			Size:   typeSize(module, m.Type),
			Type:   typeName(module, m.Type),
		})
	}
	return vars
}

func typeSize(module *ir.Module, h ir.TypeHandle) uint32 {
	switch t := module.Types[h].Inner.(type) {
	case ir.ScalarType:
		return uint32(t.Width)
	case ir.VectorType:
		return uint32(t.Size) * uint32(t.Scalar.Width)
	case ir.MatrixType:
		rows := uint32(t.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint32(t.Columns) * rows * uint32(t.Scalar.Width)
	case ir.AtomicType:
		return uint32(t.Scalar.Width)
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		return *t.Size.Constant * t.Stride
	case ir.StructType:
		return t.Span
	default:
		return 0
	}
}

func scalarName(s ir.ScalarType) string {
	bits := uint32(s.Width) * 8
	switch s.Kind {
	case ir.ScalarSint:
		return fmt.Sprintf("i%d", bits)
	case ir.ScalarUint:
		return fmt.Sprintf("u%d", bits)
	case ir.ScalarFloat:
		return fmt.Sprintf("f%d", bits)
	default:
		return "bool"
	}
}

func typeName(module *ir.Module, h ir.TypeHandle) string {
	typ := module.Types[h]
	switch t := typ.Inner.(type) {
	case ir.ScalarType:
		return scalarName(t)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", t.Size, scalarName(t.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", t.Columns, t.Rows, scalarName(t.Scalar))
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return fmt.Sprintf("array<%s>", typeName(module, t.Base))
		}
		return fmt.Sprintf("array<%s, %d>", typeName(module, t.Base), *t.Size.Constant)
	default:
		return typ.Name
	}
}

func shaderStage(s ir.ShaderStage) metadata.ShaderStage {
	switch s {
	case ir.StageVertex:
		return metadata.ShaderStageVertex
	case ir.StageFragment:
		return metadata.ShaderStageFragment
	default:
		return metadata.ShaderStageCompute
	}
}

func moduleVisibility(module *ir.Module) metadata.ShaderStage {
	var stages metadata.ShaderStage
	for _, ep := range module.EntryPoints {
		stages |= shaderStage(ep.Stage)
	}
	return stages
}
