// Package historycmd implements the `vsotask history` command.
package historycmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/models"
	"github.com/go-ports/vsotask/internal/service"
)

// Command implements `vsotask history`.
type Command struct {
	ctx   *shared.Context
	cmd   *cobra.Command
	limit int
	kind  string
	id    string
	prune bool
}

// New creates the history command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	f := c.cmd.Flags()
	f.IntVar(&c.limit, "limit", 20, "Max runs to show")
	f.StringVar(&c.kind, "kind", "", "Filter by run kind (exec, script)")
	f.StringVar(&c.id, "id", "", "Show the run whose ID starts with this prefix")
	f.BoolVar(&c.prune, "prune", false, "Delete runs older than history.retain_days")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := service.New(c.ctx.Home)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()

	if c.prune {
		n, err := svc.Prune()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d run(s).\n", n)
		return nil
	}

	if c.id != "" {
		r, err := svc.GetRun(c.id)
		if err != nil {
			return err
		}
		printDetails(cmd, r)
		return nil
	}

	runs, err := svc.History(c.limit, c.kind)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(out, "  %s | %s | %-6s | rc %d | %s | %s\n",
			r.ID[:8], r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind, r.ExitCode, r.Status, r.Command)
	}
	return nil
}

func printDetails(cmd *cobra.Command, r *models.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", r.ID)
	fmt.Fprintf(out, "Kind:     %s\n", r.Kind)
	fmt.Fprintf(out, "Command:  %s\n", r.Command)
	fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Exit:     %d\n", r.ExitCode)
	fmt.Fprintf(out, "Status:   %s\n", r.Status)
	if r.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", r.Message)
	}
}
