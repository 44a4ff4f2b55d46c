// Package shared holds the context passed to all CLI commands.
package shared

import "fmt"

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// Home overrides the task home directory.
	// When empty, resolution falls through to VSOTASK_HOME env var → persisted config → ~/.vsotask.
	Home string
}

// ExitCode is returned by a command that has already reported its outcome
// and wants the process to end with the given status.
type ExitCode int

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}
