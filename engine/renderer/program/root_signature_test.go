package program_test

import (
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootSignatureZones(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	rs := program.NewRootSignature(f.globals)

	assert.Equal(t, uint32(0), rs.DescriptorSetBaseIndex())
	assert.Equal(t, 6, rs.DescriptorSetCount())
	assert.Equal(t, uint32(6), rs.RootDescriptorBaseIndex())
	assert.Equal(t, 5, rs.RootDescriptorCount())
	assert.Equal(t, uint32(11), rs.RootConstantBaseIndex())
	assert.Equal(t, 1, rs.RootConstantCount())
	assert.Equal(t, 12, rs.RootParameterCount())

	assert.Same(t, f.globals.DescriptorSetLayout(0), rs.DescriptorSetLayout(0))
	assert.Same(t, f.material.DescriptorSetLayout(1), rs.DescriptorSetLayout(5))

	assert.Equal(t, program.RootDescriptorDesc{RegIndex: 8}, rs.RootDescriptor(0))
	assert.Equal(t, program.RootDescriptorDesc{RegIndex: 9, UAV: true}, rs.RootDescriptor(1))
	assert.Equal(t, program.RootDescriptorDesc{RegIndex: 2, UAV: true}, rs.RootDescriptor(4))
	assert.Equal(t, uint32(3), rs.RootConstant(0).Words)
}

func TestRootSignaturePushConstantLayout(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	l := program.NewRootSignature(f.globals).PushConstantLayout()

	require.Len(t, l.Ranges, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, program.PushConstantRange{RootIndex: uint32(6 + i), Offset: uint32(8 * i), Size: 8}, l.Ranges[i])
	}
	assert.Equal(t, program.PushConstantRange{RootIndex: 11, Offset: 40, Size: 12}, l.Ranges[5])
	assert.Equal(t, uint32(52), l.Size)

	r, ok := l.Find(11)
	assert.True(t, ok)
	assert.Equal(t, uint32(40), r.Offset)
	_, ok = l.Find(0)
	assert.False(t, ok)
}

func TestRootSignatureCacheReuse(t *testing.T) {
	build := func(space uint32, visibility metadata.ShaderStage) *metadata.ParameterBlockReflection {
		return mustReflection(t, metadata.ParameterBlockReflectionConfig{
			Name:       "Block",
			Visibility: visibility,
			Ranges: []metadata.ResourceRangeConfig{
				{Name: "tex", DescriptorType: metadata.DescriptorTypeShaderResource, Space: space},
			},
		})
	}

	cache := program.NewRootSignatureCache()
	a := cache.Get(build(0, metadata.ShaderStageFragment))
	b := cache.Get(build(0, metadata.ShaderStageFragment))
	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())

	c := cache.Get(build(1, metadata.ShaderStageFragment))
	assert.NotSame(t, a, c)
	d := cache.Get(build(0, metadata.ShaderStageVertex))
	assert.NotSame(t, a, d)
	assert.Equal(t, 3, cache.Len())
}
