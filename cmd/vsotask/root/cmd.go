// Package rootcmd wires the root cobra.Command for the vsotask CLI binary.
package rootcmd

import (
	"github.com/spf13/cobra"

	configcmd "github.com/go-ports/vsotask/cmd/vsotask/config"
	ctxcmd "github.com/go-ports/vsotask/cmd/vsotask/ctx"
	execcmd "github.com/go-ports/vsotask/cmd/vsotask/exec"
	historycmd "github.com/go-ports/vsotask/cmd/vsotask/history"
	logcmd "github.com/go-ports/vsotask/cmd/vsotask/log"
	mcpcmd "github.com/go-ports/vsotask/cmd/vsotask/mcp"
	runcmd "github.com/go-ports/vsotask/cmd/vsotask/run"
	setupcmd "github.com/go-ports/vsotask/cmd/vsotask/setup"
	"github.com/go-ports/vsotask/cmd/vsotask/shared"
	"github.com/go-ports/vsotask/internal/buildinfo"
)

// New creates and returns the root cobra.Command for the vsotask CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "vsotask",
		Short:         "Task helpers: capture context, run commands, log, host task scripts",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	root.PersistentFlags().StringVar(
		&ctx.Home, "home", "",
		"Override task home directory (default: $VSOTASK_HOME env → persisted config → ~/.vsotask)",
	)

	root.AddCommand(
		execcmd.New(ctx).Cmd(),
		logcmd.NewInfo(ctx).Cmd(),
		logcmd.NewVerbose(ctx).Cmd(),
		ctxcmd.New(ctx).Cmd(),
		runcmd.New(ctx).Cmd(),
		historycmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		setupcmd.NewUninstall(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
	)

	return root
}
