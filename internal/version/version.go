// Package version reports the build identity of the skillyard binary, the
// string surfaced by `skillyard --version`.
package version

import "fmt"

// Set via -ldflags "-X" at release build time; left at these placeholder
// defaults for `go run`/`go build` invocations during development.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// GetVersion returns the release tag, or "dev" outside of a release build.
func GetVersion() string {
	if Version == "dev" {
		return "dev"
	}
	return Version
}

// GetFullVersion renders Version alongside the commit and build timestamp,
// e.g. "v0.3.0 (commit abcdef1, built 2026-07-31T00:00:00Z)".
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
