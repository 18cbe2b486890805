package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the current authentication status.

This command displays whether a credential is stored, which user it belongs
to, and when the token expires. It does not go to the network.`,
	RunE: runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.store.GetAuth(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("AniList")
	if cred == nil {
		fmt.Printf("  Status:     %s\n", text.FgYellow.Sprint("Not authenticated"))
		fmt.Printf("              Run: anitrack auth login\n")
		return nil
	}

	fmt.Printf("  User:       %d\n", cred.UserID)
	switch {
	case cred.ExpiresAt.IsZero():
		fmt.Printf("  Status:     %s\n", text.FgGreen.Sprint("Authenticated"))
		fmt.Printf("  Expires:    unknown (token treated as long-lived)\n")
	case time.Now().After(cred.ExpiresAt):
		if cred.RefreshToken != "" {
			fmt.Printf("  Status:     %s\n", text.FgYellow.Sprint("Expired (will refresh on next use)"))
		} else {
			fmt.Printf("  Status:     %s\n", text.FgYellow.Sprint("Expired"))
			fmt.Printf("              Run: anitrack auth login\n")
		}
		fmt.Printf("  Expired:    %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
	default:
		fmt.Printf("  Status:     %s\n", text.FgGreen.Sprint("Authenticated"))
		fmt.Printf("  Expires:    %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}
