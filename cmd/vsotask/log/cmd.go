// Package logcmd implements the `vsotask info` and `vsotask verbose` commands.
package logcmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/tasklog"
)

// Command implements one of the log line commands.
type Command struct {
	cmd   *cobra.Command
	write func(l *tasklog.Logger, msg string)
}

// NewInfo creates the info command.
func NewInfo(_ *shared.Context) *Command {
	return newCommand("info", "Print an [INFO] line", (*tasklog.Logger).Info)
}

// NewVerbose creates the verbose command.
func NewVerbose(_ *shared.Context) *Command {
	return newCommand("verbose", "Print a [VERBOSE] line", (*tasklog.Logger).Verbose)
}

func newCommand(use, short string, write func(*tasklog.Logger, string)) *Command {
	c := &Command{write: write}
	c.cmd = &cobra.Command{
		Use:   use + " [message...]",
		Short: short,
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	c.write(tasklog.New(cmd.OutOrStdout()), strings.Join(args, " "))
	return nil
}
