package systems

import (
	"github.com/spaghettifunk/shaderbind/engine/assets"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/math"
)

const (
	minJobQueueSize = 16
	maxJobQueueSize = 1024
)

type SystemManager struct {
	JobSystem     *JobSystem
	ProgramSystem *ProgramSystem
}

func NewSystemManager(config *core.Config, am *assets.AssetManager) (*SystemManager, error) {
	js, err := NewJobSystem(config.Engine.Workers, math.Clamp(config.Engine.Workers*4, minJobQueueSize, maxJobQueueSize))
	if err != nil {
		return nil, err
	}
	ps, err := NewProgramSystem(&ProgramSystemConfig{
		MaxProgramCount:      config.Engine.MaxProgramCount,
		ReloadQueueSize:      int(config.Engine.MaxProgramCount),
		ShaderIdentifierSize: config.Binder.ShaderIdentifierSize,
	}, am, js)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	am.OnChange(ps.OnAssetEvent)

	return &SystemManager{
		JobSystem:     js,
		ProgramSystem: ps,
	}, nil
}

// Update runs the per-frame work of every system.
func (sm *SystemManager) Update() {
	sm.ProgramSystem.Update()
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.ProgramSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
