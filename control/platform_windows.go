//go:build windows
// +build windows

// control/platform_windows.go
//
// Windows-specific debug probes, called from loader.Loader.Start alongside
// the pool-depth probes it registers directly.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
