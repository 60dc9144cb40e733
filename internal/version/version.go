// Package version exposes Agent Control's build version, read from the
// Go module's embedded build info when available (falling back to a
// linker-injected value for release builds).
package version

import "runtime/debug"

// Version is overridden at release-build time via
// -ldflags "-X github.com/newrelic/agent-control/internal/version.Version=...".
var Version = "dev"

// FriendlyVersion returns Version, or the VCS revision embedded by the
// Go toolchain when Version was not set by the linker.
func FriendlyVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return Version
}
