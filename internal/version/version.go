// Package version carries build identification, overridable at link time
// with -ldflags "-X .../internal/version.Version=...".
package version

var (
	// Version is the lasfoot release version.
	Version = "0.2.0"
	// GitSHA is the git commit SHA of the build.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
