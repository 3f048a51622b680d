package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBlock(t *testing.T, config ParameterBlockReflectionConfig) *ParameterBlockReflection {
	t.Helper()
	r, err := NewParameterBlockReflection(config)
	require.NoError(t, err)
	return r
}

func TestParameterBlockReflectionSets(t *testing.T) {
	material := mustBlock(t, ParameterBlockReflectionConfig{
		Name:            "Material",
		ElementByteSize: 16,
		Ranges: []ResourceRangeConfig{
			{Name: "albedo", DescriptorType: DescriptorTypeShaderResource, Space: 1},
		},
	})
	rootConsts := mustBlock(t, ParameterBlockReflectionConfig{
		Name:             "PerDraw",
		ElementByteSize:  8,
		UseRootConstants: true,
	})

	r := mustBlock(t, ParameterBlockReflectionConfig{
		Name:            "Globals",
		ElementByteSize: 64,
		Variables: []VariableReflection{
			{Name: "viewProj", Offset: 0, Size: 64, Type: "float4x4"},
		},
		Ranges: []ResourceRangeConfig{
			{Name: "tex", DescriptorType: DescriptorTypeShaderResource, Count: 4, BaseIndex: 1},
			{Name: "samp", DescriptorType: DescriptorTypeSampler},
			{Name: "out", DescriptorType: DescriptorTypeUnorderedAccess, Space: 3},
			{Name: "material", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorParameterBlock, SubObject: material},
			{Name: "positions", DescriptorType: DescriptorTypeShaderResource, Flavor: FlavorRootDescriptor, BaseIndex: 8},
			{Name: "perDraw", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorRootConstant, SubObject: rootConsts},
			{Name: "lights", DescriptorType: DescriptorTypeUnorderedAccess, Flavor: FlavorRootDescriptor, BaseIndex: 9},
		},
	})

	// space 0 (cbv + tex), samplers of space 0, space 3
	require.Equal(t, 3, r.DescriptorSetCount())

	s0 := r.DescriptorSetLayout(0)
	require.Equal(t, 2, s0.RangeCount())
	assert.Equal(t, DescriptorTypeConstantBuffer, s0.Range(0).Type)
	assert.Equal(t, -1, s0.Range(0).ResourceRangeIndex)
	assert.Equal(t, uint32(4), s0.Range(1).DescCount)
	assert.Equal(t, 0, s0.Range(1).ResourceRangeIndex)
	assert.Equal(t, ShaderStageAll, s0.Visibility)

	assert.True(t, r.DescriptorSetLayout(1).IsSamplerSet())
	assert.Equal(t, uint32(3), r.DescriptorSetLayout(2).Range(0).RegSpace)

	cb := r.DefaultConstantBufferBindingInfo()
	assert.True(t, cb.IsDescriptorBacked())
	assert.Equal(t, 0, cb.DescriptorSetIndex)
	assert.Equal(t, 0, cb.DescriptorRangeIndex)

	require.Equal(t, 2, r.ParameterBlockSubObjectRangeCount())
	assert.Equal(t, 3, r.ParameterBlockSubObjectRangeIndex(0))
	assert.Equal(t, 5, r.ParameterBlockSubObjectRangeIndex(1))

	require.Equal(t, 2, r.RootDescriptorRangeCount())
	assert.Equal(t, 4, r.RootDescriptorRangeIndex(0))
	assert.Equal(t, 6, r.RootDescriptorRangeIndex(1))
	assert.True(t, r.ResourceRange(6).IsUAV())

	assert.Equal(t, 3, r.FindRange("material"))
	assert.Equal(t, -1, r.FindRange("missing"))
	v, ok := r.FindVariable("viewProj")
	assert.True(t, ok)
	assert.Equal(t, uint32(64), v.Size)

	// 3 own + material's cbv and space 1 sets; root-constant sub-object has none
	assert.Equal(t, 2, material.DescriptorSetCount())
	assert.Equal(t, 5, r.TotalDescriptorSetCount())
	assert.False(t, rootConsts.DefaultConstantBufferBindingInfo().IsDescriptorBacked())
	assert.Equal(t, 0, rootConsts.DescriptorSetCount())
}

func TestParameterBlockReflectionInvalid(t *testing.T) {
	plain := mustBlock(t, ParameterBlockReflectionConfig{Name: "Plain", ElementByteSize: 4})
	withTexture := mustBlock(t, ParameterBlockReflectionConfig{Name: "WithTexture", ElementByteSize: 4, Ranges: []ResourceRangeConfig{
		{Name: "innerTex", DescriptorType: DescriptorTypeShaderResource},
	}})
	withBlock := mustBlock(t, ParameterBlockReflectionConfig{Name: "WithBlock", ElementByteSize: 4, Ranges: []ResourceRangeConfig{
		{Name: "inner", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorParameterBlock, SubObject: plain},
	}})

	tests := []struct {
		name   string
		config ParameterBlockReflectionConfig
	}{
		{"missing sub-object", ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
			{Name: "pb", Flavor: FlavorParameterBlock},
		}}},
		{"root constant without root constants", ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
			{Name: "rc", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorRootConstant, SubObject: plain},
		}}},
		{"root descriptor sampler", ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
			{Name: "rd", DescriptorType: DescriptorTypeSampler, Flavor: FlavorRootDescriptor},
		}}},
		{"constant buffer srv", ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
			{Name: "cb", DescriptorType: DescriptorTypeShaderResource, Flavor: FlavorConstantBuffer, SubObject: plain},
		}}},
		{"constant buffer with a texture", ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
			{Name: "cb", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorConstantBuffer, SubObject: withTexture},
		}}},
		{"constant buffer with a parameter block", ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
			{Name: "cb", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorConstantBuffer, SubObject: withBlock},
		}}},
		{"variable overflow", ParameterBlockReflectionConfig{ElementByteSize: 4, Variables: []VariableReflection{
			{Name: "v", Offset: 2, Size: 4},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParameterBlockReflection(tt.config)
			assert.Error(t, err)
		})
	}

	// root descriptors inside a constant buffer are bound by the second pass
	withRootDesc := mustBlock(t, ParameterBlockReflectionConfig{Name: "Light", ElementByteSize: 16, Ranges: []ResourceRangeConfig{
		{Name: "lightData", DescriptorType: DescriptorTypeUnorderedAccess, Flavor: FlavorRootDescriptor},
	}})
	_, err := NewParameterBlockReflection(ParameterBlockReflectionConfig{Ranges: []ResourceRangeConfig{
		{Name: "cb", DescriptorType: DescriptorTypeConstantBuffer, Flavor: FlavorConstantBuffer, SubObject: withRootDesc},
	}})
	assert.NoError(t, err)
}

func TestProgramReflection(t *testing.T) {
	local := mustBlock(t, ParameterBlockReflectionConfig{Name: "Local"})
	p := &ProgramReflection{
		Name:                  "rt",
		DefaultParameterBlock: mustBlock(t, ParameterBlockReflectionConfig{Name: "Global"}),
		EntryPointGroups: []*EntryPointGroupReflection{
			{Name: "rayGen", Kind: EntryPointGroupKindRayGen, ParameterBlock: local},
			{Name: "miss", Kind: EntryPointGroupKindMiss, ParameterBlock: local},
		},
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, 2, p.EntryPointGroupCount())
	assert.Equal(t, "miss", p.EntryPointGroup(1).Name)
	assert.Nil(t, p.EntryPointGroup(2))
	assert.Nil(t, p.EntryPointGroup(-1))
	assert.Equal(t, 1, p.FindEntryPointGroup("miss"))

	p.EntryPointGroups = append(p.EntryPointGroups, &EntryPointGroupReflection{Name: "broken"})
	assert.Error(t, p.Validate())
}

func TestEnumStrings(t *testing.T) {
	for _, s := range []string{"srv", "uav", "cbv", "sampler"} {
		d, err := DescriptorTypeFromString(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
	}
	for _, s := range []string{"simple", "constant_buffer", "parameter_block", "root_descriptor", "root_constant"} {
		f, err := FlavorFromString(s)
		require.NoError(t, err)
		assert.Equal(t, s, f.String())
	}
	_, err := FlavorFromString("bogus")
	assert.Error(t, err)

	stage, ok := ShaderStageFromString("closesthit")
	assert.True(t, ok)
	assert.Equal(t, "closesthit", stage.String())
	assert.Equal(t, "vertex|fragment", (ShaderStageVertex | ShaderStageFragment).String())
	assert.Equal(t, "all", ShaderStageAll.String())
}
