package program_test

import (
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/spaghettifunk/shaderbind/engine/renderer/recording"
	"github.com/stretchr/testify/require"
)

// Resource range indices of the globals block built by newFixture.
const (
	rangeTex = iota
	rangeSampler
	rangePositions
	rangeMaterial
	rangePerDraw
	rangeLight
	rangeOutput
)

type fixture struct {
	globals  *metadata.ParameterBlockReflection
	material *metadata.ParameterBlockReflection
	perDraw  *metadata.ParameterBlockReflection
	light    *metadata.ParameterBlockReflection

	compiler *countingCompiler
	version  *program.ProgramVersion
	ctx      *recording.Context
}

type countingCompiler struct {
	inner *program.DefaultCompiler
	calls int
}

func (c *countingCompiler) Compile(p *program.Program, r *metadata.ProgramReflection, args []program.SpecializationArg) (*program.Kernels, error) {
	c.calls++
	return c.inner.Compile(p, r, args)
}

func mustReflection(t *testing.T, config metadata.ParameterBlockReflectionConfig) *metadata.ParameterBlockReflection {
	t.Helper()
	r, err := metadata.NewParameterBlockReflection(config)
	require.NoError(t, err)
	return r
}

// newFixture builds a globals block with two material parameter blocks, a
// root constant block, a constant buffer block and two root descriptors.
func newFixture(t *testing.T, kind program.ProgramKind) *fixture {
	t.Helper()
	f := &fixture{}
	f.material = mustReflection(t, metadata.ParameterBlockReflectionConfig{
		Name:            "Material",
		ElementByteSize: 16,
		Variables:       []metadata.VariableReflection{{Name: "roughness", Offset: 0, Size: 4, Type: "float"}},
		Ranges: []metadata.ResourceRangeConfig{
			{Name: "albedo", DescriptorType: metadata.DescriptorTypeShaderResource, Space: 1},
			{Name: "matBuf", DescriptorType: metadata.DescriptorTypeShaderResource, Flavor: metadata.FlavorRootDescriptor, BaseIndex: 4},
		},
	})
	f.perDraw = mustReflection(t, metadata.ParameterBlockReflectionConfig{
		Name:             "PerDraw",
		ElementByteSize:  10,
		UseRootConstants: true,
	})
	f.light = mustReflection(t, metadata.ParameterBlockReflectionConfig{
		Name:            "Light",
		ElementByteSize: 16,
		Ranges: []metadata.ResourceRangeConfig{
			{Name: "lightData", DescriptorType: metadata.DescriptorTypeUnorderedAccess, Flavor: metadata.FlavorRootDescriptor, BaseIndex: 2},
		},
	})
	f.globals = mustReflection(t, metadata.ParameterBlockReflectionConfig{
		Name:            "Globals",
		ElementByteSize: 64,
		Variables:       []metadata.VariableReflection{{Name: "frame", Offset: 0, Size: 4, Type: "uint"}},
		Ranges: []metadata.ResourceRangeConfig{
			{Name: "tex", DescriptorType: metadata.DescriptorTypeShaderResource, Count: 2, BaseIndex: 1},
			{Name: "samp", DescriptorType: metadata.DescriptorTypeSampler},
			{Name: "positions", DescriptorType: metadata.DescriptorTypeShaderResource, Flavor: metadata.FlavorRootDescriptor, BaseIndex: 8},
			{Name: "material", DescriptorType: metadata.DescriptorTypeConstantBuffer, Flavor: metadata.FlavorParameterBlock, Count: 2, SubObject: f.material},
			{Name: "perDraw", DescriptorType: metadata.DescriptorTypeConstantBuffer, Flavor: metadata.FlavorRootConstant, SubObject: f.perDraw},
			{Name: "light", DescriptorType: metadata.DescriptorTypeConstantBuffer, Flavor: metadata.FlavorConstantBuffer, BaseIndex: 3, SubObject: f.light},
			{Name: "output", DescriptorType: metadata.DescriptorTypeUnorderedAccess, Flavor: metadata.FlavorRootDescriptor, BaseIndex: 9},
		},
	})

	p, err := program.NewProgram(kind, &metadata.ProgramReflection{Name: "fixture", DefaultParameterBlock: f.globals})
	require.NoError(t, err)

	f.compiler = &countingCompiler{inner: program.NewDefaultCompiler(program.NewRootSignatureCache(), 32)}
	f.version = program.NewProgramVersion(p, f.compiler)

	cfg := core.DefaultConfig()
	f.ctx = recording.NewContext(cfg.Binder)
	return f
}

func subBlock(t *testing.T, b *program.ParameterBlock, rangeIndex int, arrayIndex uint32) *program.ParameterBlock {
	t.Helper()
	sub, err := b.ParameterBlock(rangeIndex, arrayIndex)
	require.NoError(t, err)
	return sub
}
