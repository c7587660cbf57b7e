// Package version exposes build identification set at link time.
package version

import "fmt"

// Set with -ldflags "-X github.com/uplinkbot/uplink/internal/version.Version=... ".
var (
	Version = "dev"
	Commit  = "unknown"
)

// GetInfo returns the human-readable build string.
func GetInfo() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
