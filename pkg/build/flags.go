// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time, for example:
//
//	go build -ldflags "-X moodscope/pkg/build.buildVersion=0.2.0 -X moodscope/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds carry no flags and fall back to defaults.
package build

import (
	"errors"
	"fmt"
)

// Info is the build metadata shown by --version and in logs.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the version line.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var buildInfo = defaultInfo()

func defaultInfo() *Info {
	return &Info{
		Name:        "moodscope",
		Description: "Live audio mood analysis",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags values into the build info. Missing flags
// keep their defaults and are reported together in the returned error,
// which callers may treat as a development build rather than a failure.
func Initialize() error {
	var errs []error
	set := func(dst *string, value, name string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is not set", name))
			return
		}
		*dst = value
	}

	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}
