package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

/** @brief Logging configuration, the [log] table. */
type LogConfig struct {
	/** @brief One of debug, info, warn, error, fatal. */
	Level string `toml:"level"`
	/** @brief Prefix printed before every line. Empty keeps the default. */
	Prefix string `toml:"prefix"`
	/** @brief Whether the caller file:line is reported. */
	ReportCaller bool `toml:"report_caller"`
}

/** @brief Binder configuration, the [binder] table. */
type BinderConfig struct {
	/** @brief Byte alignment of a single shader record. Must be a power of two. */
	ShaderRecordAlignment uint32 `toml:"shader_record_alignment"`
	/** @brief Byte alignment of each shader sub-table. Must be a power of two. */
	ShaderTableAlignment uint32 `toml:"shader_table_alignment"`
	/** @brief Size in bytes of a shader identifier produced by the default compiler. */
	ShaderIdentifierSize uint32 `toml:"shader_identifier_size"`
	/** @brief Number of released descriptor sets kept for reuse per layout. */
	DescriptorRecycleCapacity int `toml:"descriptor_recycle_capacity"`
}

/** @brief Asset configuration, the [assets] table. */
type AssetsConfig struct {
	/** @brief Directory holding reflection descriptions and shader sources. */
	Dir string `toml:"dir"`
	/** @brief Whether the directory is watched for changes. */
	Watch bool `toml:"watch"`
}

/** @brief Engine loop configuration, the [engine] table. */
type EngineConfig struct {
	/** @brief Command backend, recording or vulkan. */
	Backend string `toml:"backend"`
	/** @brief Number of frames to run. 0 runs until quit. */
	Frames uint64 `toml:"frames"`
	/** @brief Target frames per second. 0 disables frame limiting. */
	TargetFPS uint32 `toml:"target_fps"`
	/** @brief Number of job system workers. */
	Workers int `toml:"workers"`
	/** @brief The maximum number of programs registered at once. */
	MaxProgramCount uint16 `toml:"max_program_count"`
}

/** @brief A program to register at startup, one [[programs]] entry. */
type ProgramConfig struct {
	/** @brief Registration name. Empty uses the reflection name. */
	Name string `toml:"name"`
	/** @brief One of graphics, compute, raytracing. */
	Kind string `toml:"kind"`
	/** @brief Reflection (.toml) or shader source (.wgsl) asset path. */
	Path string `toml:"path"`
}

type Config struct {
	Log      LogConfig       `toml:"log"`
	Binder   BinderConfig    `toml:"binder"`
	Assets   AssetsConfig    `toml:"assets"`
	Engine   EngineConfig    `toml:"engine"`
	Programs []ProgramConfig `toml:"programs"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Binder: BinderConfig{
			ShaderRecordAlignment:     32,
			ShaderTableAlignment:      64,
			ShaderIdentifierSize:      32,
			DescriptorRecycleCapacity: 64,
		},
		Assets: AssetsConfig{
			Dir:   "assets",
			Watch: false,
		},
		Engine: EngineConfig{
			Backend:         "recording",
			Frames:          0,
			TargetFPS:       60,
			Workers:         4,
			MaxProgramCount: 256,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML data on top of the defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !isPowerOfTwo(c.Binder.ShaderRecordAlignment) {
		return fmt.Errorf("binder.shader_record_alignment must be a power of two, got %d", c.Binder.ShaderRecordAlignment)
	}
	if !isPowerOfTwo(c.Binder.ShaderTableAlignment) {
		return fmt.Errorf("binder.shader_table_alignment must be a power of two, got %d", c.Binder.ShaderTableAlignment)
	}
	if c.Binder.ShaderIdentifierSize == 0 {
		return fmt.Errorf("binder.shader_identifier_size must be greater than 0")
	}
	if c.Binder.DescriptorRecycleCapacity < 0 {
		return fmt.Errorf("binder.descriptor_recycle_capacity must not be negative")
	}
	if c.Engine.Backend != "recording" && c.Engine.Backend != "vulkan" {
		return fmt.Errorf("engine.backend must be recording or vulkan, got %q", c.Engine.Backend)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be greater than 0, got %d", c.Engine.Workers)
	}
	if c.Engine.MaxProgramCount == 0 {
		return fmt.Errorf("engine.max_program_count must be greater than 0")
	}
	for i, p := range c.Programs {
		if p.Path == "" {
			return fmt.Errorf("programs[%d] has no path", i)
		}
		if p.Kind == "" {
			return fmt.Errorf("programs[%d] (%s) has no kind", i, p.Path)
		}
	}
	return nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}
