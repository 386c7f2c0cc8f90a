// Package version exposes the build version stamped at link time.
package version

// Version is replaced at build time via
// -ldflags "-X github.com/Miyamura80/CLI-Template/internal/version.Version=v1.2.3".
var Version = "dev"
