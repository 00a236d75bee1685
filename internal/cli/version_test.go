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

func releaseBuild() *debug.BuildInfo {
	return &debug.BuildInfo{
		GoVersion: "go1.24.2",
		Main:      debug.Module{Path: "github.com/aidanlsb/sqlgraph", Version: "v0.4.1"},
		Deps: []*debug.Module{
			{Path: "modernc.org/sqlite", Version: "v1.29.1"},
			{Path: "github.com/jackc/pgx/v5", Version: "v5.5.1"},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "9f1c2e"},
			{Key: "vcs.time", Value: "2026-09-30T08:12:00Z"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "GOOS", Value: "linux"},
			{Key: "GOARCH", Value: "arm64"},
		},
	}
}

func TestCurrentVersionInfo(t *testing.T) {
	stubBuildInfo(t, releaseBuild())

	info := currentVersionInfo()

	assert.Equal(t, "v0.4.1", info.Version)
	assert.Equal(t, "github.com/aidanlsb/sqlgraph", info.ModulePath)
	assert.Equal(t, "9f1c2e", info.Commit)
	assert.Equal(t, "2026-09-30T08:12:00Z", info.CommitTime)
	assert.True(t, info.Modified)
	assert.Equal(t, "go1.24.2", info.GoVersion)
	assert.Equal(t, "linux", info.GOOS)
	assert.Equal(t, "arm64", info.GOARCH)
	assert.Equal(t, []DriverInfo{
		{Dialect: "sqlite", Module: "modernc.org/sqlite", Version: "v1.29.1"},
		{Dialect: "postgres", Module: "github.com/jackc/pgx/v5", Version: "v5.5.1"},
	}, info.Drivers)
}

func TestCurrentVersionInfoWithoutBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil)

	info := currentVersionInfo()

	assert.Equal(t, "devel", info.Version)
	assert.Equal(t, defaultModulePath, info.ModulePath)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.GOOS)
	assert.Equal(t, runtime.GOARCH, info.GOARCH)
	require.Len(t, info.Drivers, 2)
	assert.Empty(t, info.Drivers[0].Version)
}

func TestNormalizeVersion(t *testing.T) {
	for in, want := range map[string]string{
		"":        "devel",
		"(devel)": "devel",
		"v1.0.0":  "v1.0.0",
	} {
		if got := normalizeVersion(in); got != want {
			t.Errorf("normalizeVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVersionCommandJSONOutput(t *testing.T) {
	bi := releaseBuild()
	bi.Main.Version = "(devel)"
	stubBuildInfo(t, bi)

	prevJSON := jsonOutput
	t.Cleanup(func() { jsonOutput = prevJSON })
	jsonOutput = true

	out := captureStdout(t, func() {
		require.NoError(t, versionCmd.RunE(versionCmd, nil))
	})

	var resp struct {
		OK   bool        `json:"ok"`
		Data versionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "out=%s", out)
	assert.True(t, resp.OK)
	assert.Equal(t, "devel", resp.Data.Version)
	assert.Equal(t, "9f1c2e", resp.Data.Commit)
	require.Len(t, resp.Data.Drivers, 2)
	assert.Equal(t, "postgres", resp.Data.Drivers[1].Dialect)
}
