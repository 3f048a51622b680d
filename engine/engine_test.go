package engine

import (
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/spaghettifunk/shaderbind/engine/renderer/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGame struct {
	*Game
	engine  *Engine
	updates int
	renders int
	stopAt  int
}

func newCountingGame(t *testing.T, frames uint64) *countingGame {
	cfg := core.DefaultConfig()
	cfg.Assets.Dir = t.TempDir()
	cfg.Engine.Frames = frames
	cfg.Engine.TargetFPS = 0

	g := &countingGame{Game: &Game{ApplicationConfig: &ApplicationConfig{Name: "test", Config: cfg}}}
	g.FnInitialize = func() error { return nil }
	g.FnUpdate = func(float64) error {
		g.updates++
		if g.stopAt > 0 && g.updates == g.stopAt {
			g.engine.Stop()
		}
		return nil
	}
	g.FnRender = func(ctx program.Context, _ float64) error {
		g.renders++
		ctx.CommandList().Dispatch(1, 1, 1)
		return nil
	}
	return g
}

func TestEngineRunsConfiguredFrames(t *testing.T) {
	g := newCountingGame(t, 5)
	e, err := New(g.Game)
	require.NoError(t, err)
	g.engine = e

	assert.Error(t, e.Run())
	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.NotNil(t, g.SystemManager)
	assert.Same(t, e.Context(), g.Context)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(5), e.FrameNumber())
	assert.Equal(t, 5, g.updates)
	assert.Equal(t, 5, g.renders)

	rec := e.Context().(*recording.Context)
	assert.Equal(t, 5, rec.Submitted)
	// only the last batch is kept
	assert.Len(t, rec.Commands().Filter(recording.OpDispatch), 1)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
	require.NoError(t, e.Shutdown())
}

func TestEngineStopsOnQuit(t *testing.T) {
	g := newCountingGame(t, 0)
	e, err := New(g.Game)
	require.NoError(t, err)
	g.engine = e
	g.stopAt = 3

	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.FrameNumber())
	require.NoError(t, e.Shutdown())
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Engine.Workers = 0
	_, err := New(&Game{ApplicationConfig: &ApplicationConfig{Config: cfg}})
	assert.Error(t, err)

	_, err = New(&Game{})
	assert.Error(t, err)
}
