package version

// CLIName is the binary name used in help output and user agents.
const CLIName = "txpilot"

// Version is overridden at release time via -ldflags.
var Version = "0.1.0-dev"

// Commit is the short git revision, injected at build time.
var Commit = "unknown"

func Long() string {
	return CLIName + " " + Version + " (" + Commit + ")"
}
