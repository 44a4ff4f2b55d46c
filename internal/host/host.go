// Package host runs a task script under a script engine, feeding it the task
// context on stdin and interpreting the logging commands it writes.
package host

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-ports/vsotask/internal/redaction"
	"github.com/go-ports/vsotask/internal/taskcmd"
	"github.com/go-ports/vsotask/internal/taskctx"
	"github.com/go-ports/vsotask/internal/tasklog"
)

// EngineEnv names the environment variable that overrides engine selection.
const EngineEnv = "USEPYTHON"

const (
	// maxLineSize bounds one output line; longer lines are split.
	maxLineSize = 1 << 20
	// waitDelay bounds how long output is read after the script exits
	// or is cancelled, for children that leave the pipes open.
	waitDelay = 2 * time.Second
)

// defaultEngines are tried in order when nothing else is configured.
var defaultEngines = []string{"python3", "python"}

// Status is the outcome of a task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Issue is an error or warning reported through task.issue.
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Result describes a finished task.
type Result struct {
	ExitCode  int
	Status    Status
	Message   string
	Variables map[string]string
	Issues    []Issue
}

// Options configures a Run.
type Options struct {
	// Engine is the configured engine name or path. USEPYTHON takes
	// precedence; python3 and python are the fallbacks.
	Engine string
	// EngineArgs are passed to the engine before the script path.
	EngineArgs []string
	// Output receives the prefixed log lines. Defaults to os.Stdout.
	Output io.Writer
	// Masker redacts forwarded output. Nil applies the built-in patterns
	// plus the context's declared secrets.
	Masker *redaction.Masker
	// Env is the base environment. Nil means os.Environ().
	Env []string
	// Dir is the working directory. Empty means the current one.
	Dir string
}

// ExitError reports a script that exited with a non-zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("return code: %d", e.Code)
}

// ResolveEngine returns the path of the first available engine among
// $USEPYTHON, preferred, python3 and python.
func ResolveEngine(preferred string) (string, error) {
	candidates := []string{os.Getenv(EngineEnv), preferred}
	candidates = append(candidates, defaultEngines...)
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid script engine: none of %s found", strings.Join(nonEmpty(candidates), ", "))
}

// InputEnv converts task inputs into INPUT_<NAME> variables, sorted by name.
// Spaces in names become underscores and names are upper-cased.
func InputEnv(inputs map[string]string) []string {
	out := make([]string, 0, len(inputs))
	for k, v := range inputs {
		name := "INPUT_" + strings.ToUpper(strings.ReplaceAll(k, " ", "_"))
		out = append(out, name+"="+v)
	}
	sort.Strings(out)
	return out
}

// Run executes script and blocks until it exits. A non-zero exit returns the
// Result together with an *ExitError. Problems found before the script
// starts (engine or script missing) return a nil Result.
func Run(ctx context.Context, script string, tctx *taskctx.Context, opts Options) (*Result, error) {
	engine, err := ResolveEngine(opts.Engine)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(script); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("invalid script path: %s", script)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	masker := opts.Masker
	if masker == nil {
		masker = redaction.NewMasker(tctx.Secrets(), nil)
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	s := &session{
		log:    tasklog.New(out),
		masker: masker,
		result: &Result{Status: StatusSucceeded, Variables: make(map[string]string)},
	}

	args := append(append([]string{}, opts.EngineArgs...), script)
	cmd := exec.CommandContext(ctx, engine, args...) // #nosec G204 -- engine and script are chosen by the task author
	cmd.Dir = opts.Dir
	cmd.Env = append(append([]string{}, env...), InputEnv(tctx.Inputs())...)
	if tctx.Present() {
		cmd.Stdin = bytes.NewReader(append(append([]byte{}, tctx.Raw()...), '\n'))
	}

	outR, outW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = s
	cmd.WaitDelay = waitDelay

	slog.Debug("host.Run", "engine", engine, "script", script)
	if cwd := opts.Dir; cwd != "" {
		s.log.Verbose("cwd: " + cwd)
	} else if cwd, err := os.Getwd(); err == nil {
		s.log.Verbose("cwd: " + cwd)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("host.Run start: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error { return s.readLines(outR) })

	waitErr := cmd.Wait()
	_ = outW.Close()
	if readErr := g.Wait(); readErr != nil {
		slog.Warn("host.Run: reading script output", "err", readErr)
	}
	s.flushErrors()

	code := 0
	if waitErr != nil {
		var ee *exec.ExitError
		switch {
		case errors.As(waitErr, &ee):
			code = ee.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			code = cmd.ProcessState.ExitCode()
		default:
			return nil, fmt.Errorf("host.Run wait: %w", waitErr)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res := s.result
		res.ExitCode = code
		res.Status = StatusFailed
		err := fmt.Errorf("host.Run %s: %w", script, ctxErr)
		s.log.Error(err.Error())
		return res, err
	}

	res := s.result
	res.ExitCode = code
	if code != 0 {
		e := &ExitError{Code: code}
		s.log.Error(e.Error())
		res.Status = StatusFailed
		return res, e
	}
	return res, nil
}

// session holds the state of one running script. Stdout and stderr are read
// on separate goroutines; mu serialises access to errBuf and result.
type session struct {
	mu     sync.Mutex
	log    *tasklog.Logger
	masker *redaction.Masker
	errBuf strings.Builder
	result *Result
}

// Write buffers stderr so a multi-line block, such as a stack trace, is
// reported as one error.
func (s *session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errBuf.Write(p)
}

func (s *session) flushErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushErrorsLocked()
}

func (s *session) flushErrorsLocked() {
	if s.errBuf.Len() == 0 {
		return
	}
	msg := strings.TrimRight(s.errBuf.String(), "\r\n")
	s.errBuf.Reset()
	s.log.Error(s.masker.Redact(msg))
}

// readLines feeds each stdout line to processLine. A line longer than
// maxLineSize is delivered in maxLineSize pieces so the pipe keeps draining.
func (s *session) readLines(r io.Reader) error {
	br := bufio.NewReaderSize(r, maxLineSize)
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			s.processLine(strings.TrimRight(string(chunk), "\r\n"))
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			return nil
		default:
			_, _ = io.Copy(io.Discard, r)
			return err
		}
	}
}

func (s *session) processLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushErrorsLocked()

	if !taskcmd.IsCommand(line) {
		s.log.Info(s.masker.Redact(line))
		return
	}
	cmd, err := taskcmd.Parse(line)
	if err != nil {
		s.log.Warning(s.masker.Redact(err.Error() + ": " + line))
		return
	}
	s.dispatch(cmd)
}

func (s *session) dispatch(cmd *taskcmd.Command) {
	msg := s.masker.Redact(cmd.Message)
	switch cmd.Name {
	case "task.setvariable":
		name := cmd.Property("variable")
		if name == "" {
			s.log.Warning("command setvariable variable not set")
			return
		}
		s.result.Variables[name] = cmd.Message

	case "task.issue":
		typ := strings.ToLower(cmd.Property("type"))
		switch typ {
		case "error":
			s.log.Error(msg)
		case "warning":
			s.log.Warning(msg)
		default:
			s.log.Warning("invalid issue type: " + cmd.Property("type"))
			return
		}
		s.result.Issues = append(s.result.Issues, Issue{Type: typ, Message: msg})

	case "task.complete":
		if cmd.Message != "" {
			s.result.Message = msg
		}
		if strings.EqualFold(cmd.Property("result"), "failed") {
			s.result.Status = StatusFailed
		} else {
			s.result.Status = StatusSucceeded
		}

	case "task.debug":
		s.log.Verbose(msg)

	default:
		s.log.Warning("command not supported: " + s.masker.Redact(cmd.String()))
	}
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
