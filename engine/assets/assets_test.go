package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const computeReflection = `
name = "blur"
default_block = "globals"

[blocks.globals]
byte_size = 16

[[blocks.globals.ranges]]
name = "output"
type = "uav"

[[entry_point_groups]]
name = "main"
stages = ["compute"]
`

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, metadata.ResourceTypeReflection, determineAssetType("a/b.toml"))
	assert.Equal(t, metadata.ResourceTypeShaderSource, determineAssetType("blur.wgsl"))
	assert.Equal(t, metadata.ResourceTypeBinary, determineAssetType("blur.spv"))
	assert.Equal(t, metadata.ResourceTypeNone, determineAssetType("readme.md"))
}

func TestAssetManagerIndexAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "programs", "blur.toml"), computeReflection)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	am := NewAssetManager()
	require.NoError(t, am.Initialize(dir, false))

	list := am.Assets()
	require.Len(t, list, 1)
	assert.Equal(t, metadata.ResourceTypeReflection, list[0].Type)

	reflection, err := am.LoadReflection(filepath.Join(dir, "programs", "blur.toml"))
	require.NoError(t, err)
	assert.Equal(t, "blur", reflection.Name)
	assert.Equal(t, 1, reflection.EntryPointGroupCount())
	assert.False(t, am.Assets()[0].LastLoaded.IsZero())

	_, err = am.LoadAsset(filepath.Join(dir, "missing.toml"), nil)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, am.Close())
	assert.ErrorIs(t, am.Close(), ErrClosed)
}

func TestAssetManagerWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blur.toml")
	writeFile(t, path, computeReflection)

	am := NewAssetManager()
	events := make(chan AssetEvent, 16)
	am.OnChange(func(e AssetEvent) {
		select {
		case events <- e:
		default:
		}
	})
	require.NoError(t, am.Initialize(dir, true))
	defer am.Close()

	writeFile(t, path, computeReflection+"\n# edited\n")

	select {
	case e := <-events:
		assert.Equal(t, AssetChanged, e.Kind)
		assert.Equal(t, filepath.Clean(path), e.Asset.Path)
		assert.Equal(t, metadata.ResourceTypeReflection, e.Asset.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return len(am.Assets()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
