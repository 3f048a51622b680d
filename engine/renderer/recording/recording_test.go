package recording

import (
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextBatches(t *testing.T) {
	ctx := NewContext(core.DefaultConfig().Binder)

	require.NoError(t, ctx.Begin())
	ctx.CommandList().Dispatch(1, 2, 3)
	require.NoError(t, ctx.Submit())
	assert.Len(t, ctx.Commands().Filter(OpDispatch), 1)

	require.NoError(t, ctx.Begin())
	assert.Empty(t, ctx.Commands().Filter(OpDispatch))
	require.NoError(t, ctx.Submit())
	assert.Equal(t, 2, ctx.Submitted)
}

func TestContextBuffers(t *testing.T) {
	ctx := NewContext(core.DefaultConfig().Binder)

	a, err := ctx.CreateBuffer("a", 10)
	require.NoError(t, err)
	b, err := ctx.CreateBuffer("b", 300)
	require.NoError(t, err)
	assert.NotZero(t, a.Address)
	assert.Zero(t, b.Address%bufferAddressAlignment)
	assert.Greater(t, b.Address, a.Address)

	require.NoError(t, ctx.UpdateBuffer(a, 6, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2, 3, 4}, BufferData(a))
	assert.Equal(t, 1, ctx.BufferUpdates)

	err = ctx.UpdateBuffer(a, 8, []byte{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	assert.Equal(t, 2, ctx.LiveBuffers())
	ctx.DestroyBuffer(a)
	assert.Equal(t, 1, ctx.LiveBuffers())
	assert.Nil(t, BufferData(a))
	assert.Error(t, ctx.UpdateBuffer(a, 0, []byte{1}))

	ctx.FailBufferUpdate = true
	assert.ErrorIs(t, ctx.UpdateBuffer(b, 0, []byte{1}), ErrInjected)
}
