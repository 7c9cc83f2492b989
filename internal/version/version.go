// Package version provides build-time version information.
package version

import "fmt"

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version
	Version = "0.1.0"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Template returns the text printed by --version and the version command.
func Template() string {
	return fmt.Sprintf("meshlens %s\ncommit: %s\nbuilt: %s\n", Version, GitCommit, BuildTime)
}
