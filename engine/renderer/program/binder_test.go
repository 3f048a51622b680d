package program_test

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/spaghettifunk/shaderbind/engine/renderer/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDescriptorTableOrder(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	vars, err := program.NewGraphicsVars(f.version)
	require.NoError(t, err)

	require.NoError(t, vars.Apply(f.ctx, true, nil))

	cmds := f.ctx.Commands().Commands
	require.NotEmpty(t, cmds)
	assert.Equal(t, recording.OpSetGraphicsRootSignature, cmds[0].Op)

	tables := f.ctx.Commands().Filter(recording.OpGraphicsDescriptorTable)
	require.Len(t, tables, f.globals.TotalDescriptorSetCount())
	require.Len(t, tables, 6)

	mat0 := subBlock(t, vars.ParameterBlock, rangeMaterial, 0)
	mat1 := subBlock(t, vars.ParameterBlock, rangeMaterial, 1)
	wantSets := []*program.DescriptorSet{
		vars.DescriptorSet(0), vars.DescriptorSet(1),
		mat0.DescriptorSet(0), mat0.DescriptorSet(1),
		mat1.DescriptorSet(0), mat1.DescriptorSet(1),
	}
	rs := cmds[0].RootSignature
	for i, c := range tables {
		assert.Equal(t, rs.DescriptorSetBaseIndex()+uint32(i), c.RootIndex)
		assert.Same(t, wantSets[i], c.Set)
	}
	assert.Empty(t, f.ctx.Commands().Filter(recording.OpComputeDescriptorTable))
}

func TestApplyRootDescriptorOrder(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	vars, err := program.NewGraphicsVars(f.version)
	require.NoError(t, err)

	positions, _ := f.ctx.CreateBuffer("positions", 64)
	output, _ := f.ctx.CreateBuffer("output", 64)
	matBuf, _ := f.ctx.CreateBuffer("matBuf", 64)
	lightData, _ := f.ctx.CreateBuffer("lightData", 64)

	require.NoError(t, vars.SetResource(rangePositions, 0, positions))
	require.NoError(t, vars.SetResourceByName("output", 0, output))
	mat1 := subBlock(t, vars.ParameterBlock, rangeMaterial, 1)
	require.NoError(t, mat1.SetResourceByName("matBuf", 0, matBuf))
	light := subBlock(t, vars.ParameterBlock, rangeLight, 0)
	require.NoError(t, light.SetResourceByName("lightData", 0, lightData))

	require.NoError(t, vars.Apply(f.ctx, true, nil))

	rs := f.ctx.Commands().Commands[0].RootSignature
	require.Equal(t, uint32(6), rs.RootDescriptorBaseIndex())

	views := f.ctx.Commands().Filter(recording.OpGraphicsShaderResourceView, recording.OpGraphicsUnorderedAccessView)
	want := []struct {
		op      recording.Op
		address uint64
	}{
		{recording.OpGraphicsShaderResourceView, positions.Address},
		{recording.OpGraphicsUnorderedAccessView, output.Address},
		{recording.OpGraphicsShaderResourceView, 0}, // material[0] unbound
		{recording.OpGraphicsShaderResourceView, matBuf.Address},
		{recording.OpGraphicsUnorderedAccessView, lightData.Address},
	}
	require.Len(t, views, len(want))
	for i, w := range want {
		assert.Equal(t, w.op, views[i].Op, "view %d", i)
		assert.Equal(t, w.address, views[i].Address, "view %d", i)
		assert.Equal(t, rs.RootDescriptorBaseIndex()+uint32(i), views[i].RootIndex, "view %d", i)
	}
}

func TestApplyRootConstants(t *testing.T) {
	f := newFixture(t, program.ProgramKindCompute)
	vars, err := program.NewComputeVars(f.version)
	require.NoError(t, err)

	perDraw := subBlock(t, vars.ParameterBlock, rangePerDraw, 0)
	require.NoError(t, perDraw.SetBytes(0, []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 4}))

	require.NoError(t, vars.Apply(f.ctx, false, nil))

	consts := f.ctx.Commands().Filter(recording.OpComputeRootConstants)
	require.Len(t, consts, 1)
	// ceil(10 / 4)
	assert.Equal(t, []uint32{1, 2, 0x0403}, consts[0].Words)

	kernels, err := vars.Kernels()
	require.NoError(t, err)
	assert.Equal(t, kernels.RootSignature().RootConstantBaseIndex(), consts[0].RootIndex)
	assert.Equal(t, uint32(11), consts[0].RootIndex)

	assert.Empty(t, f.ctx.Commands().Filter(recording.OpSetComputeRootSignature, recording.OpSetGraphicsRootSignature))
	assert.Empty(t, f.ctx.Commands().Filter(recording.OpGraphicsDescriptorTable, recording.OpGraphicsRootConstants))
	assert.Len(t, f.ctx.Commands().Filter(recording.OpComputeDescriptorTable), 6)
}

func TestApplyRootDescriptorNotBuffer(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	vars, err := program.NewGraphicsVars(f.version)
	require.NoError(t, err)

	require.NoError(t, vars.SetResource(rangePositions, 0, program.NewTexture("albedo")))

	err = vars.Apply(f.ctx, true, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidBinding))
	assert.True(t, core.IsBindingError(err, core.ErrKindRootDescriptorNotBuffer))
}

func TestApplyRootDescriptorArray(t *testing.T) {
	r := mustReflection(t, metadata.ParameterBlockReflectionConfig{
		Name: "Arrayed",
		Ranges: []metadata.ResourceRangeConfig{
			{Name: "buffers", DescriptorType: metadata.DescriptorTypeShaderResource, Flavor: metadata.FlavorRootDescriptor, Count: 2},
		},
	})
	p, err := program.NewProgram(program.ProgramKindCompute, &metadata.ProgramReflection{Name: "arrayed", DefaultParameterBlock: r})
	require.NoError(t, err)
	version := program.NewProgramVersion(p, program.NewDefaultCompiler(program.NewRootSignatureCache(), 32))
	vars, err := program.NewComputeVars(version)
	require.NoError(t, err)

	ctx := recording.NewContext(core.DefaultConfig().Binder)
	err = vars.Apply(ctx, true, nil)
	assert.True(t, core.IsBindingError(err, core.ErrKindRootDescriptorArray))
}

func TestApplyDescriptorAllocationFailure(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	vars, err := program.NewGraphicsVars(f.version)
	require.NoError(t, err)

	f.ctx.Heap().FailAllocation = true
	err = vars.Apply(f.ctx, true, nil)
	require.ErrorIs(t, err, core.ErrDescriptorAllocation)

	// only the root signature made it into the command list
	assert.Len(t, f.ctx.Commands().Commands, 1)

	f.ctx.Heap().FailAllocation = false
	f.ctx.Commands().Reset()
	require.NoError(t, vars.Apply(f.ctx, true, nil))
}

func TestApplyMissingKernels(t *testing.T) {
	f := newFixture(t, program.ProgramKindGraphics)
	block := program.NewParameterBlock(nil, f.globals)

	err := program.ApplyComputeBindings(block, f.ctx, true, nil)
	assert.True(t, core.IsBindingError(err, core.ErrKindMissingKernels))
	assert.Empty(t, f.ctx.Commands().Commands)
}

func TestDispatchCompute(t *testing.T) {
	f := newFixture(t, program.ProgramKindCompute)
	vars, err := program.NewComputeVars(f.version)
	require.NoError(t, err)

	require.NoError(t, f.version.Program().DispatchCompute(f.ctx, vars, [3]uint32{8, 4, 1}))
	cmds := f.ctx.Commands().Commands
	assert.Equal(t, recording.OpSetComputeRootSignature, cmds[0].Op)
	last := cmds[len(cmds)-1]
	assert.Equal(t, recording.OpDispatch, last.Op)
	assert.Equal(t, [3]uint32{8, 4, 1}, last.Groups)

	g := newFixture(t, program.ProgramKindGraphics)
	err = g.version.Program().DispatchCompute(g.ctx, vars, [3]uint32{1, 1, 1})
	assert.True(t, core.IsBindingError(err, core.ErrKindProgramKind))

	// vars of another program
	other := newFixture(t, program.ProgramKindCompute)
	err = other.version.Program().DispatchCompute(other.ctx, vars, [3]uint32{1, 1, 1})
	assert.ErrorIs(t, err, core.ErrInvalidBinding)
}

func TestNewVarsProgramKind(t *testing.T) {
	f := newFixture(t, program.ProgramKindCompute)
	_, err := program.NewGraphicsVars(f.version)
	assert.True(t, core.IsBindingError(err, core.ErrKindProgramKind))
	_, err = program.NewComputeVars(nil)
	assert.True(t, core.IsBindingError(err, core.ErrKindMissingKernels))
}
