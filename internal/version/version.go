// Package version holds build metadata for endpointd.
package version

// Overridden at build time:
// go build -ldflags "-X endpointd/internal/version.Version=1.0.0 -X endpointd/internal/version.Commit=abc123"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns a short version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "endpointd " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
