package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workoutbuddy/sessionkit/internal/domain"
	"github.com/workoutbuddy/sessionkit/internal/token"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <provider>",
		Short: "Log in via an OAuth provider (google, github, discord)",
		Long: `Prints the provider's OAuth entry URL. Open it in a browser, complete the
login, then paste the access token from the redirect URL back here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := domain.ParseProvider(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			k, err := newKit(ctx)
			if err != nil {
				return err
			}
			defer k.close(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser:\n\n  %s\n\n", k.client.LoginURL(provider))
			fmt.Fprint(cmd.OutOrStdout(), "Paste the token from the redirect URL: ")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				return fmt.Errorf("no token provided")
			}
			tok := strings.TrimSpace(scanner.Text())
			if !token.StructurallyValid(tok) {
				return fmt.Errorf("that does not look like an access token")
			}

			if err := k.state.SetAccessToken(ctx, tok); err != nil {
				return err
			}

			profile, err := k.client.FetchProfile(ctx)
			if err != nil {
				k.state.ClearAuth(ctx)
				return fmt.Errorf("login verification failed: %w", err)
			}
			k.state.SetUser(profile)

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", profile.Username, profile.Email)
			return nil
		},
	}
}
