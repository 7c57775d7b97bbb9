// Package version provides build-time version information for llmbatch.
//
// Variables in this package are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/crawlserv/llmbatch/internal/version.Version=1.0.0 ..."
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "unknown"

	// BuildDate is the UTC build timestamp in RFC3339 format
	BuildDate = "unknown"
)

// String returns a single-line version string.
func String() string {
	return Version
}

// Full returns a multi-line version string with all details.
func Full() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("llmbatch %s\n", Version))
	sb.WriteString(fmt.Sprintf("  Commit:     %s\n", Commit))
	sb.WriteString(fmt.Sprintf("  Built:      %s\n", BuildDate))
	sb.WriteString(fmt.Sprintf("  Go version: %s\n", runtime.Version()))
	sb.WriteString(fmt.Sprintf("  OS/Arch:    %s/%s", runtime.GOOS, runtime.GOARCH))
	return sb.String()
}
