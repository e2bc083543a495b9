// Package version reports build information for the llmstream binary.
//
// Version and commit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/llmstream/version.Version=0.3.0"
//
// Unset values fall back to the VCS stamp embedded by the Go toolchain.
package version
