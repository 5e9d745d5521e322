// Package misc provides program identity helpers shared by all commands.
package misc

import (
	"runtime/debug"
)

const appName = "pod2thread"

// GetAppName returns the short program name used for logging, temporary
// files and the logger name.
func GetAppName() string {
	return appName
}

// GetVersion returns module version recorded in build info, or "devel"
// when the binary was built from a working tree.
func GetVersion() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "devel"
}

// GetGitHash returns vcs revision recorded in build info, shortened to 12
// characters, or "unknown" when not built from a repository.
func GetGitHash() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}
