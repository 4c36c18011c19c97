package main

import (
	"github.com/spf13/cobra"
)

// newProcessCommandsCmd runs one batch of due internal commands, for use from
// a scheduler instead of the serve loop.
func newProcessCommandsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process-commands",
		Short: "Run one batch of due internal commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.processor.ProcessDue(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.InfoContext(cmd.Context(), "internal commands processed", "count", n)
			return nil
		},
	}
}

func newRelayOutboxCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "relay-outbox",
		Short: "Publish one batch of pending outbox entries to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			worker, p, err := a.relay()
			if err != nil {
				return err
			}
			defer p.Close()
			n, err := worker.DispatchPending(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.InfoContext(cmd.Context(), "outbox entries published", "count", n)
			return nil
		},
	}
}
