// Package procrun runs a child process synchronously, forwarding its error
// stream and optionally failing on a non-zero exit code.
package procrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long output is copied after the child exits or is
// killed, for grandchildren that keep the streams open.
const waitDelay = 2 * time.Second

// ErrNoCommand is returned when Run is called without a program.
var ErrNoCommand = errors.New("procrun: empty command")

// Options controls failure behaviour and stream redirection.
type Options struct {
	// RCFail turns an exit code greater than zero into an *ExitError.
	RCFail bool
	// StderrFail connects the child's stderr to the parent's stderr.
	// When false it is connected to the parent's stdout.
	StderrFail bool
}

// DefaultOptions returns both flags set.
func DefaultOptions() Options {
	return Options{RCFail: true, StderrFail: true}
}

// ExitError reports a child that exited with a code greater than zero
// while RCFail was set.
type ExitError struct {
	Args []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("rc %d", e.Code)
}

// Runner spawns children wired to Stdin, Stdout and Stderr.
// A nil Stdin gives the child the null device.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Runner bound to the process's own streams.
func New() *Runner {
	return &Runner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes args with the process streams and no deadline.
func Run(args []string, opts Options) (int, error) {
	return New().Run(context.Background(), args, opts)
}

// Run spawns args[0] with args[1:] and blocks until it exits.
//
// The returned code is the child's exit code, or -1 when the child was
// terminated by a signal. When ctx ends before the child exits, the child
// is killed and the error wraps ctx.Err(). A code greater than zero with
// RCFail set is reported as an *ExitError alongside the code; any other
// code is returned with a nil error.
func (r *Runner) Run(ctx context.Context, args []string, opts Options) (int, error) {
	if len(args) == 0 || args[0] == "" {
		return 0, ErrNoCommand
	}
	slog.Debug("procrun", "cmd", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204 -- running caller-supplied commands is the purpose of this package
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	if opts.StderrFail {
		cmd.Stderr = r.Stderr
	} else {
		cmd.Stderr = r.Stdout
	}

	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	code := 0
	if err != nil {
		var ee *exec.ExitError
		switch {
		case errors.As(err, &ee):
			code = ee.ExitCode()
		case errors.Is(err, exec.ErrWaitDelay):
			code = cmd.ProcessState.ExitCode()
		default:
			return 0, fmt.Errorf("procrun: start %s: %w", args[0], err)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return code, fmt.Errorf("procrun: %s: %w", args[0], ctxErr)
	}

	if code > 0 && opts.RCFail {
		return code, &ExitError{Args: args, Code: code}
	}
	return code, nil
}
