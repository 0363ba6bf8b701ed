//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Replays the demo stream on the backend named by the config file.
func (Run) Demo() error {
	fmt.Println("Run demo...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "gpucore.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the test suite. The Vulkan backend is only compiled, its tests do not
// need a device.
func (Run) Tests() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
