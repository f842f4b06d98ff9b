package cli

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	t.Cleanup(func() { readBuildInfo = prev })
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestCurrentVersionInfoFromBuildInfo(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.24.1",
		Main: debug.Module{
			Path:    "github.com/mtgcode/mtgls",
			Version: "v1.2.3",
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc1234def"},
			{Key: "vcs.time", Value: "2026-02-14T17:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "GOOS", Value: "windows"},
			{Key: "GOARCH", Value: "amd64"},
		},
	})

	info := currentVersionInfo()
	assert.Equal(t, versionInfo{
		Version:    "v1.2.3",
		ModulePath: "github.com/mtgcode/mtgls",
		Commit:     "abc1234def",
		CommitTime: "2026-02-14T17:00:00Z",
		Modified:   true,
		GoVersion:  "go1.24.1",
		GOOS:       "windows",
		GOARCH:     "amd64",
	}, info)
	assert.Equal(t, "mtgls v1.2.3 (abc1234, modified) go1.24.1 windows/amd64", info.String())
}

func TestCurrentVersionInfoFallbackWhenBuildInfoMissing(t *testing.T) {
	stubBuildInfo(t, nil)

	info := currentVersionInfo()
	assert.Equal(t, "devel", info.Version)
	assert.Equal(t, defaultModulePath, info.ModulePath)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.GOOS+"/"+info.GOARCH)
	assert.Equal(t, "mtgls devel "+runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH, info.String())
}

func TestVersionCommandJSONOutput(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.24.1",
		Main:      debug.Module{Path: "github.com/mtgcode/mtgls", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeef"},
			{Key: "GOOS", Value: "darwin"},
			{Key: "GOARCH", Value: "arm64"},
		},
	})

	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)

	var resp struct {
		OK   bool        `json:"ok"`
		Data versionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.True(t, resp.OK)
	assert.Equal(t, "devel", resp.Data.Version)
	assert.Equal(t, "deadbeef", resp.Data.Commit)
	assert.Equal(t, "darwin/arm64", resp.Data.GOOS+"/"+resp.Data.GOARCH)
}
