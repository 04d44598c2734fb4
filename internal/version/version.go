// Package version exposes build information stamped in at link time.
package version

import "fmt"

// Populated via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a single-line version banner.
func Info() string {
	return fmt.Sprintf("nftdata %s (commit %s, built %s)", Version, Commit, Date)
}
