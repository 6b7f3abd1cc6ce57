// Package version holds build information injected via ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, e.g. v0.3.1.
	GitRelease = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "none"
	// GitCommitDate is the commit date.
	GitCommitDate = "unknown"
	// GoInfo is the Go version and platform.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
