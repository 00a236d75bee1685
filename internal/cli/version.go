package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sqlgraph/internal/buildinfo"
	"github.com/aidanlsb/sqlgraph/internal/dialect"
)

const defaultModulePath = "github.com/aidanlsb/sqlgraph"

// driverModules maps each dialect to the database/sql driver module linked
// in for it.
var driverModules = map[string]string{
	"sqlite":   "modernc.org/sqlite",
	"postgres": "github.com/jackc/pgx/v5",
}

// DriverInfo names the driver behind one dialect.
type DriverInfo struct {
	Dialect string `json:"dialect"`
	Module  string `json:"module"`
	Version string `json:"version,omitempty"`
}

type versionInfo struct {
	Version    string       `json:"version"`
	ModulePath string       `json:"module_path"`
	Commit     string       `json:"commit,omitempty"`
	CommitTime string       `json:"commit_time,omitempty"`
	Modified   bool         `json:"modified"`
	GoVersion  string       `json:"go_version"`
	GOOS       string       `json:"goos"`
	GOARCH     string       `json:"goarch"`
	Drivers    []DriverInfo `json:"drivers"`
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show sqlgraph version, build and driver information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Printf("sqlgraph %s (%s/%s, %s)\n", info.Version, info.GOOS, info.GOARCH, info.GoVersion)
		fmt.Printf("module: %s\n", info.ModulePath)
		if info.Commit != "" {
			suffix := ""
			if info.Modified {
				suffix = " (modified)"
			}
			fmt.Printf("commit: %s%s %s\n", info.Commit, suffix, info.CommitTime)
		}
		for _, d := range info.Drivers {
			v := d.Version
			if v == "" {
				v = "unknown"
			}
			fmt.Printf("driver %-8s %s %s\n", d.Dialect+":", d.Module, v)
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
	if !ok || bi == nil {
		bi = &debug.BuildInfo{}
	}
	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	deps := make(map[string]string, len(bi.Deps))
	for _, m := range bi.Deps {
		deps[m.Path] = m.Version
	}

	if bi.Main.Path != "" {
		info.ModulePath = bi.Main.Path
	}
	info.Version = normalizeVersion(bi.Main.Version)
	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}
	if v := settings["GOOS"]; v != "" {
		info.GOOS = v
	}
	if v := settings["GOARCH"]; v != "" {
		info.GOARCH = v
	}
	info.Commit = firstNonEmpty(settings["vcs.revision"], buildinfo.Commit)
	info.CommitTime = firstNonEmpty(settings["vcs.time"], buildinfo.Date)
	info.Modified = strings.EqualFold(settings["vcs.modified"], "true")
	if info.Version == "devel" && buildinfo.Version != "" {
		info.Version = normalizeVersion(buildinfo.Version)
	}

	for _, name := range dialect.Names() {
		mod := driverModules[name]
		info.Drivers = append(info.Drivers, DriverInfo{Dialect: name, Module: mod, Version: deps[mod]})
	}
	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func firstNonEmpty(values ...string) string {
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
