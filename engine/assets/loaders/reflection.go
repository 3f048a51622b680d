package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

type variableDesc struct {
	Name   string `toml:"name"`
	Offset uint32 `toml:"offset"`
	Size   uint32 `toml:"size"`
	Type   string `toml:"type"`
}

type rangeDesc struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Flavor   string `toml:"flavor"`
	Count    uint32 `toml:"count"`
	Register uint32 `toml:"register"`
	Space    uint32 `toml:"space"`
	/** @brief Name of the nested block for sub-object flavors. */
	Block string `toml:"block"`
}

type blockDesc struct {
	ByteSize      uint32         `toml:"byte_size"`
	RootConstants bool           `toml:"root_constants"`
	CBRegister    uint32         `toml:"cb_register"`
	Visibility    []string       `toml:"visibility"`
	Variables     []variableDesc `toml:"variables"`
	Ranges        []rangeDesc    `toml:"ranges"`
}

type entryPointGroupDesc struct {
	Name   string   `toml:"name"`
	Kind   string   `toml:"kind"`
	Stages []string `toml:"stages"`
	/** @brief Local block of the group; empty means no local parameters. */
	Block string `toml:"block"`
}

type programDesc struct {
	Name             string                `toml:"name"`
	DefaultBlock     string                `toml:"default_block"`
	Blocks           map[string]blockDesc  `toml:"blocks"`
	EntryPointGroups []entryPointGroupDesc `toml:"entry_point_groups"`
}

/**
 * @brief Loads a program reflection described in TOML: named parameter
 * blocks, the program's default block and its entry-point groups.
 */
type ReflectionLoader struct{}

func (rl *ReflectionLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	reflection, err := ParseReflection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if reflection.Name == "" {
		reflection.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &metadata.Resource{
		Name:     reflection.Name,
		Type:     metadata.ResourceTypeReflection,
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     reflection,
	}, nil
}

func (rl *ReflectionLoader) Unload(*metadata.Resource) error {
	return nil
}

// ParseReflection decodes a TOML reflection description.
func ParseReflection(data []byte) (*metadata.ProgramReflection, error) {
	var desc programDesc
	if err := toml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode reflection: %w", err)
	}

	b := &blockBuilder{
		descs:    desc.Blocks,
		built:    make(map[string]*metadata.ParameterBlockReflection),
		visiting: make(map[string]bool),
	}

	if desc.DefaultBlock == "" {
		return nil, fmt.Errorf("reflection %q has no default_block", desc.Name)
	}
	global, err := b.build(desc.DefaultBlock)
	if err != nil {
		return nil, err
	}

	program := &metadata.ProgramReflection{
		Name:                  desc.Name,
		DefaultParameterBlock: global,
	}
	for _, g := range desc.EntryPointGroups {
		group, err := b.entryPointGroup(g)
		if err != nil {
			return nil, err
		}
		program.EntryPointGroups = append(program.EntryPointGroups, group)
	}

	if err := program.Validate(); err != nil {
		return nil, err
	}
	core.LogDebug("reflection %q parsed: %d blocks, %d entry point groups", desc.Name, len(b.built), len(program.EntryPointGroups))
	return program, nil
}

type blockBuilder struct {
	descs    map[string]blockDesc
	built    map[string]*metadata.ParameterBlockReflection
	visiting map[string]bool
}

func (b *blockBuilder) build(name string) (*metadata.ParameterBlockReflection, error) {
	if r, ok := b.built[name]; ok {
		return r, nil
	}
	desc, ok := b.descs[name]
	if !ok {
		return nil, fmt.Errorf("block %q: %w", name, core.ErrNotFound)
	}
	if b.visiting[name] {
		return nil, fmt.Errorf("block %q contains itself: %w", name, core.ErrInvalidBinding)
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	visibility, err := parseStages(desc.Visibility)
	if err != nil {
		return nil, fmt.Errorf("block %q: %w", name, err)
	}

	config := metadata.ParameterBlockReflectionConfig{
		Name:                          name,
		ElementByteSize:               desc.ByteSize,
		UseRootConstants:              desc.RootConstants,
		DefaultConstantBufferRegister: desc.CBRegister,
		Visibility:                    visibility,
	}
	for _, v := range desc.Variables {
		config.Variables = append(config.Variables, metadata.VariableReflection(v))
	}
	for _, rd := range desc.Ranges {
		rc, err := b.rangeConfig(rd)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", name, err)
		}
		config.Ranges = append(config.Ranges, rc)
	}

	r, err := metadata.NewParameterBlockReflection(config)
	if err != nil {
		return nil, fmt.Errorf("block %q: %w", name, err)
	}
	b.built[name] = r
	return r, nil
}

func (b *blockBuilder) rangeConfig(rd rangeDesc) (metadata.ResourceRangeConfig, error) {
	descriptorType, err := metadata.DescriptorTypeFromString(rd.Type)
	if err != nil {
		return metadata.ResourceRangeConfig{}, fmt.Errorf("range %q: %w", rd.Name, err)
	}
	flavor, err := metadata.FlavorFromString(rd.Flavor)
	if err != nil {
		return metadata.ResourceRangeConfig{}, fmt.Errorf("range %q: %w", rd.Name, err)
	}

	rc := metadata.ResourceRangeConfig{
		Name:           rd.Name,
		DescriptorType: descriptorType,
		Flavor:         flavor,
		Count:          rd.Count,
		BaseIndex:      rd.Register,
		Space:          rd.Space,
	}
	if rd.Block != "" {
		if rc.SubObject, err = b.build(rd.Block); err != nil {
			return metadata.ResourceRangeConfig{}, fmt.Errorf("range %q: %w", rd.Name, err)
		}
	}
	return rc, nil
}

func (b *blockBuilder) entryPointGroup(g entryPointGroupDesc) (*metadata.EntryPointGroupReflection, error) {
	kind, err := metadata.EntryPointGroupKindFromString(g.Kind)
	if err != nil {
		return nil, fmt.Errorf("entry point group %q: %w", g.Name, err)
	}
	stages, err := parseStages(g.Stages)
	if err != nil {
		return nil, fmt.Errorf("entry point group %q: %w", g.Name, err)
	}

	var block *metadata.ParameterBlockReflection
	if g.Block != "" {
		block, err = b.build(g.Block)
	} else {
		block, err = metadata.NewParameterBlockReflection(metadata.ParameterBlockReflectionConfig{Name: g.Name})
	}
	if err != nil {
		return nil, fmt.Errorf("entry point group %q: %w", g.Name, err)
	}

	return &metadata.EntryPointGroupReflection{
		Name:           g.Name,
		Kind:           kind,
		Stages:         stages,
		ParameterBlock: block,
	}, nil
}

func parseStages(names []string) (metadata.ShaderStage, error) {
	var stages metadata.ShaderStage
	for _, n := range names {
		s, ok := metadata.ShaderStageFromString(n)
		if !ok {
			return 0, fmt.Errorf("unknown shader stage %q", n)
		}
		stages |= s
	}
	return stages, nil
}
