// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata injected at link time, e.g.
//
//	go build -ldflags "-X micscope/pkg/build.buildVersion=0.2.0 \
//	    -X micscope/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X micscope/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds run without ldflags and report "dev" / "unknown".
package build

import (
	"errors"
	"strings"
)

const (
	appName        = "micscope"
	appDescription = "Live microphone waveform and spectrum visualizer"
)

// Info holds build metadata.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags.
var (
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        appName,
		Description: appDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags variables into the build info. Missing
// flags keep their development defaults and are reported in the
// returned error so callers can warn about an unstamped binary.
func Initialize() error {
	var missing []string
	if buildTime == "" {
		missing = append(missing, "buildTime")
	} else {
		buildInfo.Time = buildTime
	}
	if buildCommit == "" {
		missing = append(missing, "buildCommit")
	} else {
		buildInfo.Commit = buildCommit
	}
	if buildVersion == "" {
		missing = append(missing, "buildVersion")
	} else {
		buildInfo.Version = buildVersion
	}

	if len(missing) > 0 {
		return errors.New("unstamped build, missing ldflags: " + strings.Join(missing, ", "))
	}
	return nil
}

// GetBuildInfo returns the current build metadata.
func GetBuildInfo() *Info {
	return buildInfo
}
