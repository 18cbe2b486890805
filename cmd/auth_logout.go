package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored AniList credentials",
	Long: `Clear the stored OAuth credentials.

This removes the token from the local database, requiring a fresh login on
the next authenticated command. The AniList browser session is untouched.`,
	RunE: runAuthLogout,
}

func init() {
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.manager.Logout(cmd.Context()); err != nil {
		return err
	}
	a.keeper.Invalidate()

	fmt.Println("Signed out. Stored credentials removed.")
	return nil
}
