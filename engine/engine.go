package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/shaderbind/engine/assets"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/spaghettifunk/shaderbind/engine/renderer/recording"
	"github.com/spaghettifunk/shaderbind/engine/renderer/vulkan"
	"github.com/spaghettifunk/shaderbind/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

/** @brief A command context recording one batch per frame. */
type FrameContext interface {
	program.Context
	Begin() error
	Submit() error
	Destroy()
}

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	isRunning     atomic.Bool
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	context       FrameContext
	instance      *vulkan.VulkanInstance
	clock         *core.Clock
	lastTime      float64
	frameNumber   uint64
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game has no application config")
	}
	config := g.ApplicationConfig.Config
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	core.ConfigureLogging(config.Log)

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       config,
		clock:        core.NewClock(),
		assetManager: assets.NewAssetManager(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)

	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return fmt.Errorf("failed to index assets in %s: %w", e.config.Assets.Dir, err)
	}

	sm, err := systems.NewSystemManager(e.config, e.assetManager)
	if err != nil {
		return err
	}
	e.systemManager = sm
	e.gameInstance.SystemManager = sm

	if err := sm.ProgramSystem.RegisterAll(e.config.Programs); err != nil {
		return err
	}

	ctx, err := e.createContext()
	if err != nil {
		return err
	}
	e.context = ctx
	e.gameInstance.Context = ctx

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized with the %s backend", e.gameInstance.ApplicationConfig.Name, e.config.Engine.Backend)
	return nil
}

func (e *Engine) createContext() (FrameContext, error) {
	switch e.config.Engine.Backend {
	case "vulkan":
		vi, err := vulkan.NewHeadlessVulkanInstance(e.gameInstance.ApplicationConfig.Name)
		if err != nil {
			return nil, err
		}
		vc, err := vulkan.NewVulkanContext(vi.Device, vi.Allocator, e.config.Binder, vulkan.DefaultDescriptorHeapConfig())
		if err != nil {
			vi.Destroy()
			return nil, err
		}
		e.instance = vi
		return vc, nil
	default:
		return recording.NewContext(e.config.Binder), nil
	}
}

// Context returns the command context frames are recorded into.
func (e *Engine) Context() FrameContext {
	return e.context
}

// FrameNumber returns the number of frames run so far.
func (e *Engine) FrameNumber() uint64 {
	return e.frameNumber
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if e.config.Engine.TargetFPS > 0 {
		targetFrameSeconds = 1.0 / float64(e.config.Engine.TargetFPS)
	}

	for e.isRunning.Load() {
		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		// Reloads happen before any vars are applied for the frame.
		e.systemManager.Update()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		if err := e.context.Begin(); err != nil {
			e.isRunning.Store(false)
			return err
		}
		// Call the game's render routine.
		if err := e.gameInstance.FnRender(e.context, delta); err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}
		if err := e.context.Submit(); err != nil {
			e.isRunning.Store(false)
			return err
		}

		e.frameNumber++
		if e.config.Engine.Frames > 0 && e.frameNumber >= e.config.Engine.Frames {
			e.isRunning.Store(false)
		}

		// Figure out how long the frame took and give the rest back to the OS.
		if remaining := targetFrameSeconds - time.Since(frameStart).Seconds(); targetFrameSeconds > 0 && remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		// Update last time
		e.lastTime = currentTime
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Stop asks the loop to exit after the current frame. Safe to call from any
// goroutine.
func (e *Engine) Stop() {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := e.assetManager.Close(); err != nil && err != assets.ErrClosed {
		return err
	}
	if e.context != nil {
		e.context.Destroy()
	}
	if e.instance != nil {
		e.instance.Destroy()
	}
	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			return err
		}
	}
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageShutdown
	return nil
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}
