package main

import (
	"github.com/spf13/cobra"

	"github.com/workoutbuddy/sessionkit/internal/agent"
)

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the local session daemon",
		Long: `Keeps the session alive and serves it over localhost HTTP so other tools
can fetch a live bearer token without handling OAuth themselves. Session
routes return 503 until the startup restoration has settled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k, err := newKit(ctx)
			if err != nil {
				return err
			}
			defer k.close(ctx)

			a := agent.New(k.cfg, k.state, k.client, k.init, k.metricsHandler, k.log)
			return a.Run(ctx)
		},
	}
}
