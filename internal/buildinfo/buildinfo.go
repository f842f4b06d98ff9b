// Package buildinfo carries release metadata set at link time, e.g.
//
//	go build -ldflags "-X github.com/mtgcode/mtgls/internal/buildinfo.Version=v1.2.0"
//
// The values are empty for local builds.
package buildinfo

var (
	Version = ""
	Commit  = ""
	Date    = ""
)
