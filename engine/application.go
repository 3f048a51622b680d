package engine

import (
	"github.com/spaghettifunk/shaderbind/engine/core"
)

type ApplicationConfig struct {
	// The application name used for logging and the Vulkan instance.
	Name string
	// Loaded configuration. Nil uses the defaults.
	Config *core.Config
}
