package version

import (
	"fmt"
	"runtime"
)

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X taskmanager/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "1.0.0"
	Commit    = "dev"
	BuildTime = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime,omitempty"`
	GoVersion string `json:"goVersion"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("taskmanager %s (%s, %s)", i.Version, i.Commit, i.GoVersion)
}
