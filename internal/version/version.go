// Package version carries build metadata stamped with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is an RFC 3339 build timestamp.
	BuildTime = "unknown"
)

// String formats the metadata for a -version flag.
func String(name string) string {
	return fmt.Sprintf("%s version %s (%s, built %s)", name, Version, GitSHA, BuildTime)
}
