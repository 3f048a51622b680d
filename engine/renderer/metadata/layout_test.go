package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLayout() *DescriptorSetLayout {
	return &DescriptorSetLayout{
		Visibility: ShaderStageFragment,
		Ranges: []DescriptorRange{
			{Type: DescriptorTypeConstantBuffer, BaseRegIndex: 0, DescCount: 1, RegSpace: 2, ResourceRangeIndex: -1},
			{Type: DescriptorTypeShaderResource, BaseRegIndex: 1, DescCount: 4, RegSpace: 2, ResourceRangeIndex: 0},
		},
	}
}

func TestDescriptorSetLayoutEqual(t *testing.T) {
	a := testLayout()
	b := testLayout()
	assert.True(t, a.Equal(b))
	assert.True(t, a.EqualIgnoringSpace(b))

	// bookkeeping is not part of equivalence
	b.Ranges[1].ResourceRangeIndex = 7
	assert.True(t, a.Equal(b))

	tests := []struct {
		name   string
		mutate func(l *DescriptorSetLayout)
	}{
		{"range count", func(l *DescriptorSetLayout) { l.Ranges = l.Ranges[:1] }},
		{"visibility", func(l *DescriptorSetLayout) { l.Visibility = ShaderStageVertex }},
		{"base register", func(l *DescriptorSetLayout) { l.Ranges[1].BaseRegIndex = 9 }},
		{"descriptor count", func(l *DescriptorSetLayout) { l.Ranges[1].DescCount = 3 }},
		{"register space", func(l *DescriptorSetLayout) { l.Ranges[0].RegSpace = 0 }},
		{"type", func(l *DescriptorSetLayout) { l.Ranges[1].Type = DescriptorTypeUnorderedAccess }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testLayout()
			tt.mutate(o)
			assert.False(t, a.Equal(o))
			assert.False(t, o.Equal(a))
		})
	}
}

func TestDescriptorSetLayoutEqualIgnoringSpace(t *testing.T) {
	a := testLayout()
	o := testLayout()
	o.Ranges[0].RegSpace = 5
	o.Ranges[1].RegSpace = 5
	assert.False(t, a.Equal(o))
	assert.True(t, a.EqualIgnoringSpace(o))
}

func TestDescriptorSetLayoutNil(t *testing.T) {
	var a *DescriptorSetLayout
	assert.True(t, a.Equal(nil))
	assert.False(t, a.Equal(testLayout()))
	assert.False(t, testLayout().Equal(nil))
}

func TestDescriptorSetLayoutCounts(t *testing.T) {
	l := testLayout()
	assert.Equal(t, uint32(5), l.DescriptorCount())
	assert.False(t, l.IsSamplerSet())

	s := &DescriptorSetLayout{Ranges: []DescriptorRange{{Type: DescriptorTypeSampler, DescCount: 2}}}
	assert.True(t, s.IsSamplerSet())
}
