package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k, err := newKit(ctx)
			if err != nil {
				return err
			}
			defer k.close(ctx)

			// Best-effort server logout; local state clears either way.
			if err := k.client.Logout(ctx); err != nil {
				k.log.Warn("server logout failed", zap.Error(err))
			}
			k.state.ClearAuth(ctx)

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
