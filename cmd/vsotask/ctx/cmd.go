// Package ctxcmd implements the `vsotask ctx` command.
package ctxcmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/taskctx"
)

// Command implements `vsotask ctx`.
type Command struct {
	cmd *cobra.Command
	raw bool
}

// New creates the ctx command.
func New(_ *shared.Context) *Command {
	c := &Command{}
	c.cmd = &cobra.Command{
		Use:   "ctx [jsonpath]",
		Short: "Capture the task context from stdin and print it",
		Long: `Read stdin to the end and decode the last non-blank line as JSON.

Without arguments the whole value is printed as JSON. With a JSONPath
expression (for example $.inputs.script) only the selected value is
printed. An empty stdin prints null.`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.run,
	}
	c.cmd.Flags().BoolVar(&c.raw, "raw", false, "Print string results without JSON quoting")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	tctx, err := taskctx.Capture(cmd.InOrStdin())
	if err != nil {
		return err
	}

	v := tctx.Value()
	if len(args) == 1 {
		if v, err = tctx.Lookup(args[0]); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if s, ok := v.(string); ok && c.raw {
		fmt.Fprintln(out, s)
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}
