// Package runcmd implements the `vsotask run` command.
package runcmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/host"
	"github.com/go-ports/vsotask/internal/service"
	"github.com/go-ports/vsotask/internal/taskctx"
)

// Command implements `vsotask run`.
type Command struct {
	ctx         *shared.Context
	cmd         *cobra.Command
	contextFile string
	engine      string
}

// New creates the run command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "run <script>",
		Short: "Run a task script and interpret its logging commands",
		Long: `Run a task script under the script engine.

The task context is read from --context, or captured from stdin when the
flag is absent, and sent to the script as a single JSON line on its stdin.
Each input is also exported as INPUT_<NAME>. Lines the script prints that
start with ##vso[ are interpreted as logging commands; other lines are
echoed as [INFO] with secrets masked.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
	f := c.cmd.Flags()
	f.StringVar(&c.contextFile, "context", "", "Read the task context from this file instead of stdin")
	f.StringVar(&c.engine, "engine", "", "Script engine name or path (default: config engine → python3 → python)")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	tctx, err := c.loadContext(cmd)
	if err != nil {
		return err
	}

	svc, err := service.New(c.ctx.Home)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.RunScript(cmd.Context(), args[0], tctx, host.Options{
		Engine: c.engine,
		Output: cmd.OutOrStdout(),
	})
	var ee *host.ExitError
	switch {
	case errors.As(err, &ee):
		// Already reported as [ERROR] return code: N.
		if ee.Code < 0 {
			return shared.ExitCode(1)
		}
		return shared.ExitCode(ee.Code)
	case err != nil:
		return err
	case res.Status == host.StatusFailed:
		return shared.ExitCode(1)
	}
	return nil
}

func (c *Command) loadContext(cmd *cobra.Command) (*taskctx.Context, error) {
	if c.contextFile == "" {
		return taskctx.Capture(cmd.InOrStdin())
	}
	f, err := os.Open(c.contextFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return taskctx.Capture(f)
}
