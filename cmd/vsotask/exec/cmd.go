// Package execcmd implements the `vsotask exec` command.
package execcmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/procrun"
	"github.com/go-ports/vsotask/internal/service"
)

// Command implements `vsotask exec`.
type Command struct {
	ctx        *shared.Context
	cmd        *cobra.Command
	rcFail     bool
	stderrFail bool
}

// New creates the exec command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "exec [flags] -- <program> [args...]",
		Short: "Run a program and wait for it to exit",
		Long: `Run a program with the given arguments and wait for it to exit.

With --rc-fail an exit code above zero fails the command ("rc N").
Otherwise vsotask exits with the program's exit code.
With --stderr-fail the program's stderr stays separate; otherwise it is
merged into stdout. Both default to the exec section of config.yaml.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}
	c.cmd.Flags().SetInterspersed(false)
	f := c.cmd.Flags()
	f.BoolVar(&c.rcFail, "rc-fail", true, "Fail when the program exits with a code above zero")
	f.BoolVar(&c.stderrFail, "stderr-fail", true, "Keep the program's stderr separate from stdout")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	svc, err := service.New(c.ctx.Home)
	if err != nil {
		return err
	}
	defer svc.Close()

	opts := svc.ExecOptions()
	if cmd.Flags().Changed("rc-fail") {
		opts.RCFail = c.rcFail
	}
	if cmd.Flags().Changed("stderr-fail") {
		opts.StderrFail = c.stderrFail
	}

	r := &procrun.Runner{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}
	code, err := svc.Exec(cmd.Context(), r, args, opts)
	if err != nil {
		return err
	}
	switch {
	case code > 0:
		return shared.ExitCode(code)
	case code < 0:
		return shared.ExitCode(1)
	}
	return nil
}
