//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed with binder.toml on the recording backend.
func (Run) Engine() error {
	return runEngine("binder.toml")
}

// Runs the testbed with the given configuration file.
func (Run) Config(path string) error {
	return runEngine(path)
}

func runEngine(config string) error {
	mg.Deps(Build.Binary)
	fmt.Println("Run engine...")
	if _, err := executeCmd("bin/binder", withArgs("-config", config), withStream()); err != nil {
		return err
	}
	return nil
}
