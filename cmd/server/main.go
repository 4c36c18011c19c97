// Command server runs the market roles back office: the message ingestion
// API, the internal command processor, the outbox relay and the master data
// consumer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"marketroles/internal/platform/config"
	"marketroles/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "marketroles",
		Short:         "Market roles back office for the electricity market",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv(config.EnvConfigFile),
		"path to a YAML config file")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newProcessCommandsCmd(opts),
		newRelayOutboxCmd(opts),
		newValidateCmd(),
		newTokenCmd(opts),
	)
	return root
}

// bootstrap loads the configuration and builds the application.
func (o *rootOptions) bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger.New(cfg.Log.Level, cfg.Log.Format))
}
