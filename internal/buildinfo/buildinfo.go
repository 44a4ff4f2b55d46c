// Package buildinfo holds version information set with -ldflags -X.
package buildinfo

// Local builds report "dev".
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed by `vsotask --version`.
func String() string {
	return Version + " (" + GitCommit + ", built " + BuildDate + ")"
}
