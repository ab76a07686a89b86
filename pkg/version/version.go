// Package version holds the build metadata printed by 'runmetrics version'.
package version

import "runtime"

// Set with -ldflags "-X github.com/runmetrics/runmetrics/pkg/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)
