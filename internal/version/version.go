// Package version carries build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }

// String renders the build metadata on one line for service name svc.
func String(svc string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		svc, Version, GitCommit, BuildTime, GoVersion(), runtime.GOOS, runtime.GOARCH)
}
