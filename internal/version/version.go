// Package version holds build-time version information, injected via
// -ldflags "-X".
package version

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
)
