// Package version carries build metadata stamped in via -ldflags.
package version

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build metadata on one line for logs and /healthz.
func String() string {
	return fmt.Sprintf("waterline %s (%s, built %s)", Version, GitSHA, BuildTime)
}
