// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// BuildInfo holds version and build information for the `version` command,
// generalized from the teacher's internal/cli/version.go to also report the
// registered DRS providers (mock/gen3/terra).
type BuildInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
	Commit    string
	BuildTime string
	Providers []string
}

var registeredProviders = []string{"mock", "gen3", "terra"}

// GetBuildInfo inspects runtime and debug.BuildInfo to assemble the current
// binary's build metadata. VCS settings are only present in binaries built
// directly from a checkout (`go build`, not `go install <module>@version`);
// Commit/BuildTime stay "unknown" otherwise.
func GetBuildInfo(version string) BuildInfo {
	info := BuildInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Commit:    "unknown",
		BuildTime: "unknown",
		Providers: registeredProviders,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = shortRevision(setting.Value)
		case "vcs.time":
			info.BuildTime = setting.Value
		}
	}
	return info
}

func shortRevision(rev string) string {
	const shortLen = 7
	if len(rev) <= shortLen {
		return rev
	}
	return rev[:shortLen]
}

// String renders the multi-line report printed by `version` (no -s/--short).
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "drs-downloader %s\n", b.Version)
	fmt.Fprintf(&sb, "  go:        %s\n", b.GoVersion)
	fmt.Fprintf(&sb, "  platform:  %s/%s\n", b.OS, b.Arch)
	fmt.Fprintf(&sb, "  commit:    %s\n", b.Commit)
	fmt.Fprintf(&sb, "  built:     %s\n", b.BuildTime)
	fmt.Fprintf(&sb, "  providers: %s", strings.Join(b.Providers, ", "))
	return sb.String()
}

func newVersionCmd(version string) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version, build, and registered-provider information",
		Run: func(cmd *cobra.Command, args []string) {
			info := GetBuildInfo(version)
			if short {
				fmt.Println(info.Version)
				return
			}
			fmt.Println(info.String())
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")

	return cmd
}
