// Package buildinfo carries release metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/aidanlsb/sqlgraph/internal/buildinfo.Version=v0.3.0"
package buildinfo

// Empty in development builds; version falls back to debug.ReadBuildInfo.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
