// Package version carries build metadata set with -ldflags -X.
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for a -version flag or a startup log line.
func String() string {
	return fmt.Sprintf("intnav %s (%s, built %s)", Version, GitSHA, BuildTime)
}
