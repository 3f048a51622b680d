package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blurShader = `
struct Params {
    scale: f32,
    count: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> pixels: array<u32>;
@group(1) @binding(1) var tex_sampler: sampler;
@group(1) @binding(0) var tex: texture_2d<f32>;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    pixels[gid.x] = params.count;
}
`

func TestReflectWGSL(t *testing.T) {
	p, err := ReflectWGSL("blur", blurShader)
	require.NoError(t, err)

	assert.Equal(t, "blur", p.Name)
	global := p.DefaultParameterBlock
	require.Equal(t, 4, global.ResourceRangeCount())

	expected := []struct {
		name  string
		typ   metadata.DescriptorType
		space uint32
		index uint32
	}{
		{"params", metadata.DescriptorTypeConstantBuffer, 0, 0},
		{"pixels", metadata.DescriptorTypeUnorderedAccess, 0, 1},
		{"tex", metadata.DescriptorTypeShaderResource, 1, 0},
		{"tex_sampler", metadata.DescriptorTypeSampler, 1, 1},
	}
	for i, e := range expected {
		r := global.ResourceRange(i)
		assert.Equal(t, e.name, r.Name, "range %d", i)
		assert.Equal(t, e.typ, r.DescriptorType, "range %d", i)
		assert.Equal(t, e.space, r.Space, "range %d", i)
		assert.Equal(t, e.index, r.BaseIndex, "range %d", i)
	}

	// space 0, space 1 and the sampler set
	assert.Equal(t, 3, global.DescriptorSetCount())
	assert.Equal(t, metadata.ShaderStageCompute, global.DescriptorSetLayout(0).Visibility)

	require.Equal(t, 1, p.EntryPointGroupCount())
	ep := p.EntryPointGroup(0)
	assert.Equal(t, "main", ep.Name)
	assert.Equal(t, metadata.EntryPointGroupKindEntryPoint, ep.Kind)
	assert.Equal(t, metadata.ShaderStageCompute, ep.Stages)
}

func TestReflectWGSLSyntaxError(t *testing.T) {
	_, err := ReflectWGSL("broken", "@compute fn main( {")
	assert.Error(t, err)
}

func TestWGSLLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blur.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(blurShader), 0o644))

	res, err := (&WGSLLoader{}).Load(path, metadata.ResourceTypeShaderSource, nil)
	require.NoError(t, err)
	assert.Equal(t, "blur", res.Name)
	assert.Equal(t, metadata.ResourceTypeShaderSource, res.Type)

	p, ok := res.Reflection()
	require.True(t, ok)
	assert.Equal(t, 4, p.DefaultParameterBlock.ResourceRangeCount())
}

func TestReflectWGSLPushConstants(t *testing.T) {
	source := `
struct Params {
    scale: f32,
    count: u32,
}

var<push_constant> params: Params;
@group(0) @binding(0) var<storage, read_write> pixels: array<u32>;

@compute @workgroup_size(64, 1, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    pixels[gid.x] = params.count;
}
`
	p, err := ReflectWGSL("params", source)
	require.NoError(t, err)

	global := p.DefaultParameterBlock
	assert.True(t, global.DefaultConstantBufferBindingInfo().UseRootConstants)
	assert.Equal(t, uint32(8), global.ElementByteSize())
	require.Equal(t, 1, global.ResourceRangeCount())

	count, ok := global.FindVariable("count")
	require.True(t, ok)
	assert.Equal(t, uint32(4), count.Offset)
	assert.Equal(t, uint32(4), count.Size)
	assert.Equal(t, "u32", count.Type)
}
