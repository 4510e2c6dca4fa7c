// Package vars exposes build metadata: linker-set values, falling back to
// the VCS stamp the Go toolchain embeds in the binary.
package vars

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"
)

// License of srcrelay.
const License = "AGPL-3.0"

// Set with -ldflags "-X github.com/woozymasta/srcrelay/internal/vars.Version=v1.2.3 ...".
var (
	Name      = "srcrelay"
	Version   = "dev"
	Commit    = "unknown"
	URL       = "https://github.com/woozymasta/srcrelay"
	Revision  = 0
	BuildTime = time.Unix(0, 0).UTC()

	_revision  string
	_buildTime string
)

// BuildInfo is the JSON shape of GET /api/version.
type BuildInfo struct {
	// betteralign:ignore

	BuildTime   time.Time `json:"build_time,omitempty"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	CommitShort string    `json:"commit_short,omitempty"`
	GoVersion   string    `json:"go_version"`
	Platform    string    `json:"platform"`
	URL         string    `json:"url,omitempty"`
	License     string    `json:"license,omitempty"`
	Revision    int       `json:"revision,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		BuildTime = t.UTC()
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		applyVCS(info.Settings)
	}
}

// applyVCS fills commit and build time from "go build" VCS settings when the
// linker did not set them.
func applyVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if _buildTime != "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				BuildTime = t.UTC()
			}
		}
	}
}

// Print writes the --version report.
func Print(w io.Writer) {
	info := Info()
	_, _ = fmt.Fprintf(w, "%s %s (%s)\n", info.Name, info.Version, info.CommitShort)
	_, _ = fmt.Fprintf(w, "  built:    %s\n", info.BuildTime.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "  revision: %d\n", info.Revision)
	_, _ = fmt.Fprintf(w, "  go:       %s %s\n", info.GoVersion, info.Platform)
	_, _ = fmt.Fprintf(w, "  source:   %s\n", info.URL)
	_, _ = fmt.Fprintf(w, "  license:  %s\n", info.License)
}

// Info snapshots the build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		URL:         URL,
		License:     License,
	}
}

// UserAgent is sent with every request to Discord, Steam and the GeoIP mirror.
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}

// CommitShort trims Commit to 7 characters.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
