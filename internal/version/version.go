// Package version reports the build identity of fwdump.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/fwdump/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/fwdump/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the build info, then
// fall back to "dev".
var (
	Version = ""
	Commit  = ""
)

// Info is the build identity shown by `fwdump version`.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Platform  string
}

var current Info

func init() {
	current = resolve(Version, Commit, readSettings())
	Version = current.Version
	Commit = current.Commit
}

func readSettings() map[string]string {
	settings := make(map[string]string)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// resolve merges the ldflags values with the vcs.* build settings.
func resolve(version, commit string, settings map[string]string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
		info.BuildTime = t.UTC().Format("2006-01-02")
	}

	if info.Commit == "" {
		if rev := settings["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			if settings["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			info.Commit = rev
		} else {
			info.Commit = "unknown"
		}
	}

	if info.Version == "" {
		info.Version = "dev"
		if info.BuildTime != "" {
			info.Version = "dev-" + info.BuildTime
		}
	}
	return info
}

// Get returns the resolved build identity.
func Get() Info {
	return current
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", current.Version, current.Commit)
}

func (i Info) String() string {
	s := fmt.Sprintf("fwdump %s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
	if i.BuildTime != "" {
		s += ", built " + i.BuildTime
	}
	return s
}
