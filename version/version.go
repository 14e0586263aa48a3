package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
	// FullVersion is shown by --version
	FullVersion = fmt.Sprintf("%s (commit %s, built %s)", Version, GitSHA, BuildTime)
)
