package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(32), cfg.Binder.ShaderRecordAlignment)
	assert.Equal(t, uint32(64), cfg.Binder.ShaderTableAlignment)
	assert.Equal(t, "assets", cfg.Assets.Dir)
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
[log]
level = "debug"
report_caller = true

[binder]
shader_record_alignment = 64

[assets]
dir = "data"
watch = true

[engine]
frames = 3

[[programs]]
name = "blur"
kind = "compute"
path = "data/blur.wgsl"
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.ReportCaller)
	assert.Equal(t, uint32(64), cfg.Binder.ShaderRecordAlignment)
	// untouched keys keep their defaults
	assert.Equal(t, uint32(64), cfg.Binder.ShaderTableAlignment)
	assert.Equal(t, uint32(32), cfg.Binder.ShaderIdentifierSize)
	assert.Equal(t, "data", cfg.Assets.Dir)
	assert.True(t, cfg.Assets.Watch)
	assert.Equal(t, uint64(3), cfg.Engine.Frames)
	assert.Equal(t, 4, cfg.Engine.Workers)
	require.Len(t, cfg.Programs, 1)
	assert.Equal(t, ProgramConfig{Name: "blur", Kind: "compute", Path: "data/blur.wgsl"}, cfg.Programs[0])
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	for _, data := range []string{
		"[binder]\nshader_record_alignment = 24\n",
		"[binder]\nshader_table_alignment = 0\n",
		"[binder]\nshader_identifier_size = 0\n",
		"[binder]\ndescriptor_recycle_capacity = -1\n",
		"[binder\n",
		"[engine]\nworkers = 0\n",
		"[engine]\nbackend = \"metal\"\n",
		"[engine]\nmax_program_count = 0\n",
		"[[programs]]\nkind = \"compute\"\n",
		"[[programs]]\npath = \"a.toml\"\n",
	} {
		_, err := ParseConfig([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binder.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"warn\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
