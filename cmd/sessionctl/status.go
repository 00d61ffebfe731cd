package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/workoutbuddy/sessionkit/internal/token"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the stored token's state without touching the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k, err := newKit(ctx)
			if err != nil {
				return err
			}
			defer k.close(ctx)

			tok, err := k.store.Read(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case tok == "":
				fmt.Fprintln(out, "No stored token. Not logged in.")
			case token.IsExpired(tok, k.cfg.Token.ClockSkew):
				fmt.Fprintln(out, "Stored token has expired. It will be refreshed on the next authenticated call.")
			default:
				ttl := token.TimeToExpiry(tok)
				fmt.Fprintf(out, "Stored token is valid for %s.\n", ttl.Round(time.Second))
				if claims := token.Decode(tok); claims != nil && claims.Subject != "" {
					fmt.Fprintf(out, "Subject: %s\n", claims.Subject)
				}
			}
			return nil
		},
	}
}
