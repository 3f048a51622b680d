package systems

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/shaderbind/engine/assets"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blurReflection = `
name = "blur"
default_block = "globals"

[blocks.globals]
byte_size = 16
variables = [{ name = "radius", offset = 0, size = 4, type = "float" }]

[[blocks.globals.ranges]]
name = "output"
type = "uav"

[[entry_point_groups]]
name = "main"
stages = ["compute"]
`

const blurReflectionV2 = `
name = "blur"
default_block = "globals"

[blocks.globals]
byte_size = 16

[[blocks.globals.ranges]]
name = "input"
type = "srv"

[[blocks.globals.ranges]]
name = "output"
type = "uav"

[[entry_point_groups]]
name = "main"
stages = ["compute"]
`

func newTestAssets(t *testing.T, files map[string]string) (string, *assets.AssetManager) {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	am := assets.NewAssetManager()
	require.NoError(t, am.Initialize(dir, false))
	t.Cleanup(func() { _ = am.Close() })
	return dir, am
}

func TestJobSystemRunAll(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)

	js, err := NewJobSystem(3, 2)
	require.NoError(t, err)

	var done atomic.Int32
	boom := errors.New("boom")
	tasks := make([]JobTask, 10)
	for i := range tasks {
		i := i
		tasks[i] = JobTask{
			Name: "task",
			OnStart: func() error {
				if i == 7 {
					return boom
				}
				return nil
			},
			OnComplete: func() { done.Add(1) },
		}
	}
	err = js.RunAll(tasks)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(9), done.Load())

	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Shutdown(), ErrJobSystemClosed)
	assert.ErrorIs(t, js.Submit(JobTask{OnStart: func() error { return nil }}), ErrJobSystemClosed)
}

func TestProgramSystemRegister(t *testing.T) {
	dir, am := newTestAssets(t, map[string]string{"blur.toml": blurReflection})
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	_, err = NewProgramSystem(&ProgramSystemConfig{}, am, js)
	assert.Error(t, err)

	ps, err := NewProgramSystem(&ProgramSystemConfig{MaxProgramCount: 2, ShaderIdentifierSize: 32}, am, js)
	require.NoError(t, err)

	require.NoError(t, ps.RegisterAll([]core.ProgramConfig{
		{Kind: "compute", Path: filepath.Join(dir, "blur.toml")},
		{Name: "blur2", Kind: "compute", Path: filepath.Join(dir, "blur.toml")},
	}))
	assert.Equal(t, []string{"blur", "blur2"}, ps.Names())

	v, err := ps.Get("blur")
	require.NoError(t, err)
	assert.Equal(t, program.ProgramKindCompute, v.Program().Kind)

	_, err = ps.Get("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// limit reached
	_, err = ps.Register("blur3", program.ProgramKindCompute, filepath.Join(dir, "blur.toml"))
	assert.Error(t, err)

	err = ps.RegisterAll([]core.ProgramConfig{{Kind: "mesh", Path: filepath.Join(dir, "blur.toml")}})
	assert.Error(t, err)
}

func TestProgramSystemReload(t *testing.T) {
	dir, am := newTestAssets(t, map[string]string{"blur.toml": blurReflection})
	path := filepath.Join(dir, "blur.toml")

	require.True(t, core.EventSystemInitialize())
	defer core.EventSystemShutdown()

	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	defer js.Shutdown()
	ps, err := NewProgramSystem(&ProgramSystemConfig{MaxProgramCount: 4, ShaderIdentifierSize: 32}, am, js)
	require.NoError(t, err)

	v, err := ps.Register("", program.ProgramKindCompute, path)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Reflection().DefaultParameterBlock.ResourceRangeCount())

	var reloaded []string
	require.True(t, core.EventRegister(core.EVENT_CODE_PROGRAM_RELOADED, ps, func(c core.EventContext) bool {
		reloaded = append(reloaded, c.Data.(*core.ProgramReloadedEvent).Name)
		return false
	}))

	require.NoError(t, os.WriteFile(path, []byte(blurReflectionV2), 0o644))
	ps.OnAssetEvent(assets.AssetEvent{Kind: assets.AssetChanged, Asset: assets.AssetInfo{Path: path, Type: metadata.ResourceTypeReflection}})
	ps.OnAssetEvent(assets.AssetEvent{Kind: assets.AssetChanged, Asset: assets.AssetInfo{Path: filepath.Join(dir, "other.toml")}})
	ps.OnAssetEvent(assets.AssetEvent{Kind: assets.AssetRemoved, Asset: assets.AssetInfo{Path: path}})
	assert.Equal(t, 1, ps.PendingReloads())

	ps.Update()
	assert.Equal(t, 0, ps.PendingReloads())
	assert.Equal(t, []string{"blur"}, reloaded)
	assert.Equal(t, 2, v.Reflection().DefaultParameterBlock.ResourceRangeCount())

	// a broken file keeps the loaded reflection
	require.NoError(t, os.WriteFile(path, []byte("name = ["), 0o644))
	ps.OnAssetEvent(assets.AssetEvent{Kind: assets.AssetChanged, Asset: assets.AssetInfo{Path: path}})
	ps.Update()
	assert.Equal(t, []string{"blur"}, reloaded)
	assert.Equal(t, 2, v.Reflection().DefaultParameterBlock.ResourceRangeCount())
}
