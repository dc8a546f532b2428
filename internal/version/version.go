// Package version reports the build of the running binary. The variables are
// overridden through -ldflags "-X".
package version

import (
	"fmt"
	"runtime/debug"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build as "dev (commit abc1234, built 2026-01-02)".
// A commit left unset by ldflags falls back to the VCS revision that the go
// tool stamps into the binary.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, commit(), Date)
}

func commit() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shortRevision(s.Value)
		}
	}
	return "unknown"
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
