// Package cli defines the bizdesk command tree.
package cli

import (
	"bizdesk/internal/app"
	"bizdesk/internal/config"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	addr       string
}

// NewRootCmd creates the top-level "bizdesk" command. Running it without a
// subcommand starts the HTTP server.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bizdesk",
		Short:         "Business management API for clients, quotes, projects and invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "HTTP listen address, overrides the config file")

	root.AddCommand(
		newServeCmd(opts),
		newHashPasswordCmd(),
		newExportCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.addr != "" {
		cfg.HTTP.Addr = o.addr
	}
	return cfg, nil
}

func (o *rootOptions) build(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, cmd.ErrOrStderr())
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, err := opts.build(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return a.Serve(ctx)
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
