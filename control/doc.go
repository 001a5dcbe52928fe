// Package control
//
// Hot-reload, runtime metrics, configuration control, and debug introspection
// layer for the loader. Shared by loader.Loader and cmd/loaderbench.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
//
// This package is build-tag-partitioned: RegisterPlatformProbes is defined
// for Linux and Windows only.
package control
