package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Restore the stored session and print the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k, err := newKit(ctx)
			if err != nil {
				return err
			}
			defer k.close(ctx)

			k.init.Run(ctx)
			<-k.init.Done()

			snap := k.state.Snapshot()
			if !snap.IsAuthenticated {
				return fmt.Errorf("not logged in (run: sessionctl login <provider>)")
			}

			out, err := json.MarshalIndent(snap.User, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
