package version

import (
	"runtime"
	"time"
)

// APIVersion is the version segment served under /api.
const APIVersion = "v4"

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()               // go version
)

// Server returns the value reported as api_server_version in every API response.
func Server() string {
	return Version + "+" + Commit
}
