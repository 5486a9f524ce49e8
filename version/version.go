// Package version holds build metadata set with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

// Info is the version as printed by the CLI.
type Info struct {
	Release string `json:"release" yaml:"release"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	Go      string `json:"go" yaml:"go"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{Release: GitRelease, Commit: GitCommit, Date: GitCommitDate, Go: GoInfo}
}
