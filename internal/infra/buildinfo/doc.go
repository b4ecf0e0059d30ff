// Package buildinfo reports the version of the stillpoint binary.
//
// Version, Commit and BuildTime are injected at link time:
//
//	go build -ldflags "-X github.com/yndnr/stillpoint/internal/infra/buildinfo.Version=v1.0.0"
//
// Missing values fall back to what the Go toolchain embedded in the binary.
package buildinfo
