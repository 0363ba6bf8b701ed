//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Runs go mod tidy and builds the gpucore binary.
func (Build) Binary() error {
	if err := goTidy(); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/gpucore", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Regenerates mocks with mockgen.
func (Build) Generate() error {
	if _, err := executeCmd("go", withArgs("generate", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
