package engine

import (
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/spaghettifunk/shaderbind/engine/systems"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	Context           program.Context
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(ctx program.Context, deltaTime float64) error
type Shutdown func() error
