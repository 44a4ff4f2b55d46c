package procrun_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/vsotask/internal/procrun"
	"github.com/go-ports/vsotask/internal/testproc"
)

func TestMain(m *testing.M) { testproc.Main(m) }

// newRunner returns a Runner whose streams are captured in buffers.
func newRunner() (r *procrun.Runner, stdout, stderr *bytes.Buffer) {
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	return &procrun.Runner{Stdout: stdout, Stderr: stderr}, stdout, stderr
}

func allOptions() []procrun.Options {
	return []procrun.Options{
		{RCFail: true, StderrFail: true},
		{RCFail: true, StderrFail: false},
		{RCFail: false, StderrFail: true},
		{RCFail: false, StderrFail: false},
	}
}

func TestDefaultOptions(t *testing.T) {
	c := qt.New(t)
	c.Assert(procrun.DefaultOptions(), qt.Equals, procrun.Options{RCFail: true, StderrFail: true})
}

func TestRun_ExitZero(t *testing.T) {
	c := qt.New(t)

	for _, opts := range allOptions() {
		r, _, _ := newRunner()
		code, err := r.Run(context.Background(), testproc.Command("exit", "0"), opts)
		c.Assert(err, qt.IsNil, qt.Commentf("opts %+v", opts))
		c.Assert(code, qt.Equals, 0)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	c := qt.New(t)

	c.Run("rc fail raises an error identifying the code", func(c *qt.C) {
		r, _, _ := newRunner()
		code, err := r.Run(context.Background(), testproc.Command("exit", "3"), procrun.Options{RCFail: true})
		c.Assert(code, qt.Equals, 3)
		c.Assert(err, qt.ErrorMatches, "rc 3")

		var ee *procrun.ExitError
		c.Assert(errors.As(err, &ee), qt.IsTrue)
		c.Assert(ee.Code, qt.Equals, 3)
	})

	c.Run("without rc fail the code is returned", func(c *qt.C) {
		for _, opts := range []procrun.Options{{}, {StderrFail: true}} {
			r, _, _ := newRunner()
			code, err := r.Run(context.Background(), testproc.Command("exit", "7"), opts)
			c.Assert(err, qt.IsNil)
			c.Assert(code, qt.Equals, 7)
		}
	})
}

func TestRun_StreamRedirection(t *testing.T) {
	c := qt.New(t)

	c.Run("stderr fail forwards child stderr to stderr", func(c *qt.C) {
		r, stdout, stderr := newRunner()
		_, err := r.Run(context.Background(), testproc.Command("both", "out-line", "err-line", "0"),
			procrun.Options{StderrFail: true})
		c.Assert(err, qt.IsNil)
		c.Assert(stdout.String(), qt.Equals, "out-line\n")
		c.Assert(stderr.String(), qt.Equals, "err-line\n")
	})

	c.Run("without stderr fail child stderr goes to stdout", func(c *qt.C) {
		r, stdout, stderr := newRunner()
		_, err := r.Run(context.Background(), testproc.Command("stderr", "err-line"), procrun.Options{})
		c.Assert(err, qt.IsNil)
		c.Assert(stdout.String(), qt.Equals, "err-line\n")
		c.Assert(stderr.Len(), qt.Equals, 0)
	})
}

func TestRun_Stdin(t *testing.T) {
	c := qt.New(t)

	r, stdout, _ := newRunner()
	r.Stdin = strings.NewReader("piped\n")
	_, err := r.Run(context.Background(), testproc.Command("stdin"), procrun.DefaultOptions())
	c.Assert(err, qt.IsNil)
	c.Assert(stdout.String(), qt.Equals, "piped\n")
}

func TestRun_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("empty command", func(c *qt.C) {
		r, _, _ := newRunner()
		_, err := r.Run(context.Background(), nil, procrun.DefaultOptions())
		c.Assert(errors.Is(err, procrun.ErrNoCommand), qt.IsTrue)
	})

	c.Run("missing program", func(c *qt.C) {
		r, _, _ := newRunner()
		_, err := r.Run(context.Background(), []string{"/nonexistent/vsotask-no-such-binary"}, procrun.Options{})
		c.Assert(err, qt.ErrorMatches, "procrun: start .*")
	})
}

func TestRun_Cancelled(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	r, _, _ := newRunner()
	start := time.Now()
	code, err := r.Run(ctx, testproc.Command("sleep", "30s"), procrun.DefaultOptions())
	c.Assert(time.Since(start) < 10*time.Second, qt.IsTrue)
	c.Assert(code, qt.Equals, -1)
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)

	var ee *procrun.ExitError
	c.Assert(errors.As(err, &ee), qt.IsFalse)
}

func TestRun_PackageLevel(t *testing.T) {
	c := qt.New(t)

	code, err := procrun.Run(testproc.Command("exit", "0"), procrun.DefaultOptions())
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.Equals, 0)

	code, err = procrun.Run(testproc.Command("exit", "3"), procrun.DefaultOptions())
	c.Assert(code, qt.Equals, 3)
	var ee *procrun.ExitError
	c.Assert(errors.As(err, &ee), qt.IsTrue)
	c.Assert(ee.Code, qt.Equals, 3)

	code, err = procrun.Run(testproc.Command("exit", "3"), procrun.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.Equals, 3)
}
