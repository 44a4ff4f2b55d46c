// Package setupcmd implements the `vsotask setup` and `vsotask uninstall` commands.
package setupcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/setup"
)

// Command implements `vsotask setup` or `vsotask uninstall`.
type Command struct {
	cmd       *cobra.Command
	configDir string
	project   bool
	command   string
}

// New creates the setup command.
func New(_ *shared.Context) *Command {
	c := &Command{}
	c.cmd = &cobra.Command{
		Use:       "setup <agent>",
		Short:     "Register the vsotask MCP server with an agent (" + strings.Join(setup.Agents, ", ") + ")",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: setup.Agents,
		RunE:      c.runInstall,
	}
	c.bindFlags()
	c.cmd.Flags().StringVar(&c.command, "command", "", "Executable the agent launches (default: vsotask)")
	return c
}

// NewUninstall creates the uninstall command.
func NewUninstall(_ *shared.Context) *Command {
	c := &Command{}
	c.cmd = &cobra.Command{
		Use:       "uninstall <agent>",
		Short:     "Remove the vsotask MCP server from an agent",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: setup.Agents,
		RunE:      c.runUninstall,
	}
	c.bindFlags()
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) bindFlags() {
	f := c.cmd.Flags()
	f.StringVar(&c.configDir, "config-dir", "", "Path to the agent's dot directory (.claude, .cursor, .codex)")
	f.BoolVar(&c.project, "project", false, "Use the current project instead of the global configuration")
}

func (c *Command) options() setup.Options {
	return setup.Options{ConfigDir: c.configDir, Project: c.project, Command: c.command}
}

func (c *Command) runInstall(cmd *cobra.Command, args []string) error {
	res, err := setup.Install(args[0], c.options())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func (c *Command) runUninstall(cmd *cobra.Command, args []string) error {
	res, err := setup.Uninstall(args[0], c.options())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}
