package cmd

import "github.com/spf13/cobra"

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage AniList authentication",
	Long: `Manage authentication against the AniList API.

The auth command group provides subcommands to login, logout and check the
status of the stored OAuth credentials.

Examples:
  anitrack auth login                # Browser-based OAuth login
  anitrack auth login --no-browser   # Print the URL instead of opening it
  anitrack auth status               # Show authentication status
  anitrack auth logout               # Clear stored credentials`,
}

func init() {
	rootCmd.AddCommand(authCmd)
}
