// Package version holds build metadata for the ptsites binary.
//
// The variables are set with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/ptsites/internal/version.Version=1.0.0 ..."
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version (e.g., "1.0.0" or "1.0.0-dev.5+abc123")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "unknown"

	// Dirty indicates if the working tree had uncommitted changes
	Dirty = "false"

	// BuildDate is the UTC build timestamp in RFC3339 format
	BuildDate = "unknown"
)

// Info contains structured version information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version with a -dirty suffix for modified trees.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// Summary implements output.Summarizer.
func (i Info) Summary() []string {
	lines := []string{"ptsites " + String()}
	lines = append(lines, fmt.Sprintf("  Commit:     %s", i.Commit))
	if i.Dirty {
		lines = append(lines, "  Dirty:      yes")
	}
	lines = append(lines,
		fmt.Sprintf("  Built:      %s", i.BuildDate),
		fmt.Sprintf("  Go version: %s", i.GoVersion),
		fmt.Sprintf("  OS/Arch:    %s", i.Platform),
	)
	return lines
}

// Full returns a multi-line version string with all details.
func Full() string {
	return strings.Join(Get().Summary(), "\n")
}
