package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/buildinfo"
)

const defaultModulePath = "github.com/mtgcode/mtgls"

type versionInfo struct {
	Version    string `json:"version"`
	ModulePath string `json:"module_path"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
}

// String renders a one-line summary such as
// "mtgls v1.2.0 (abc1234, modified) go1.24.1 linux/amd64".
func (v versionInfo) String() string {
	var build []string
	if v.Commit != "" {
		build = append(build, shortCommit(v.Commit))
	}
	if v.Modified {
		build = append(build, "modified")
	}
	s := "mtgls " + v.Version
	if len(build) > 0 {
		s += " (" + strings.Join(build, ", ") + ")"
	}
	return fmt.Sprintf("%s %s %s/%s", s, v.GoVersion, v.GOOS, v.GOARCH)
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show mtgls version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Fprintln(stdout, info.String())
		if info.CommitTime != "" {
			fmt.Fprintf(stdout, "built from %s at %s\n", info.ModulePath, info.CommitTime)
		}
		return nil
	},
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:    "devel",
		ModulePath: defaultModulePath,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if ok && bi != nil {
		if bi.Main.Path != "" {
			info.ModulePath = bi.Main.Path
		}
		info.Version = normalizeVersion(bi.Main.Version)
		if bi.GoVersion != "" {
			info.GoVersion = bi.GoVersion
		}
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		info.GOOS = coalesce(settings["GOOS"], info.GOOS)
		info.GOARCH = coalesce(settings["GOARCH"], info.GOARCH)
		info.Commit = settings["vcs.revision"]
		info.CommitTime = settings["vcs.time"]
		info.Modified = strings.EqualFold(settings["vcs.modified"], "true")
	}

	// Release binaries get these through ldflags.
	if info.Version == "devel" && buildinfo.Version != "" {
		info.Version = normalizeVersion(buildinfo.Version)
	}
	info.Commit = coalesce(info.Commit, buildinfo.Commit)
	info.CommitTime = coalesce(info.CommitTime, buildinfo.Date)
	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
