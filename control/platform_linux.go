//go:build linux
// +build linux

// control/platform_linux.go
//
// Linux-specific debug probes, called from loader.Loader.Start alongside
// the pool-depth probes it registers directly.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets Linux-specific debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
