package auth

import (
	"errors"
	"fmt"

	"github.com/crucial707/alloc8/cmd/cli/client"
	"github.com/crucial707/alloc8/cmd/cli/config"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/spf13/cobra"
)

// InitAuth registers login, logout and whoami on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd(), whoamiCmd())
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expires_in"`
	User      models.User `json:"user"`
}

// loginCmd logs in and stores the JWT for later commands. The password is
// prompted for when --password is not given.
func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the alloc8 API",
		Long:  "Authenticate with the alloc8 API and store a JWT token for subsequent CLI commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &password); err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
			}

			var resp loginResponse
			err := client.DoAnonymous(cmd.Context(), "POST", "/auth/login",
				map[string]string{"username": username, "password": password}, &resp)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if resp.Token == "" {
				return errors.New("login succeeded but no token returned")
			}
			if err := config.SaveToken(resp.Token); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", resp.User.Username, resp.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the locally saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := config.ClearToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No user logged in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var me models.User
			if err := client.Do(cmd.Context(), "GET", "/me", nil, &me); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d, %s)\n", me.Username, me.ID, me.Role)
			return nil
		},
	}
}
