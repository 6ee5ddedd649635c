// Package version reports the build version of cleantools.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set with -ldflags "-X github.com/pity-fox/cleantools/pkg/version.Version=...".
var Version string

// Info describes the running build.
type Info struct {
	Version   string
	Revision  string
	GoVersion string
	Platform  string
	Modified  bool
}

// Get returns the build information of the running binary. Version falls
// back to the VCS revision when it is not set at link time.
func Get() Info {
	info := Info{
		Version:   Version,
		Revision:  "unknown",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Revision = s.Value[:min(len(s.Value), 7)]
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	if info.Modified {
		info.Revision += "-dirty"
	}

	if info.Version == "" {
		info.Version = info.Revision
	}

	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s %s)", i.Version, i.Revision, i.GoVersion, i.Platform)
}
