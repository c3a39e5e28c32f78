// Package misc keeps application identity helpers used by logging, the CLI
// and the debug reporter.
package misc

import (
	"runtime/debug"
)

const appName = "cqfill"

// Overridden at build time via -ldflags "-X .../misc.appVersion=...".
var (
	appVersion = ""
	gitHash    = ""
)

// GetAppName returns the short program name used for log prefixes and
// temporary file names.
func GetAppName() string {
	return appName
}

// GetVersion returns the release version, falling back to the module version
// recorded in build info for "go install" builds.
func GetVersion() string {
	if appVersion != "" {
		return appVersion
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "(devel)"
}

// GetGitHash returns the vcs revision the binary was built from, shortened
// the way git log does it.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		var hash, modified string
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				hash = s.Value
			case "vcs.modified":
				if s.Value == "true" {
					modified = "*"
				}
			}
		}
		if len(hash) > 12 {
			hash = hash[:12]
		}
		if hash != "" {
			return hash + modified
		}
	}
	return "unknown"
}
