// Package version reports the build identity of the healthfang binary.
package version

import (
	"runtime/debug"
	"sync"
)

// Set through -ldflags "-X" at release time.
var (
	Version = "dev"
	GitHash = "<unknown>"
)

var resolveOnce sync.Once

// String returns the version, falling back to the module version recorded
// by the Go toolchain when no release version was stamped.
func String() string {
	resolveOnce.Do(func() {
		if Version != "dev" {
			return
		}

		info, ok := debug.ReadBuildInfo()
		if ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	})

	return Version
}

// Hash returns the commit the binary was built from.
func Hash() string {
	if GitHash != "<unknown>" {
		return GitHash
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitHash
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			return setting.Value
		}
	}

	return GitHash
}
