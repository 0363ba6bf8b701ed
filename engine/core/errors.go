package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrOutOfDeviceMemory    = errors.New("out of device memory")
	ErrOutOfHostMemory      = errors.New("out of host memory")
	ErrNoSuitableMemoryType = errors.New("no memory type satisfies the requirements")
	ErrIncomplete           = errors.New("native query returned a truncated result")
	ErrNativeCall           = errors.New("native call failed")
	ErrInvalidHandle        = errors.New("invalid handle")
	ErrDeviceShutdown       = errors.New("device is shut down")
	ErrUnknown              = errors.New("unknown")
)

// Assert panics with an assertion failure when cond is false. Assertion
// failures mark broken preconditions of the core itself and are never
// returned as errors.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		Fatalf(format, args...)
	}
}

// Fatalf logs and panics with an assertion failure.
func Fatalf(format string, args ...interface{}) {
	err := errors.AssertionFailedf(format, args...)
	LogError(err.Error())
	panic(err)
}
