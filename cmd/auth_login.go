package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"anitrack/internal/auth"
	"anitrack/internal/cli"
)

// Login-specific flags
var loginNoBrowser bool

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with AniList",
	Long: `Authenticate with AniList using OAuth.

This command starts a local callback listener, opens the AniList
authorization page in your browser and waits for the redirect. The obtained
token is stored in the local database and reused until it expires.

Examples:
  anitrack auth login                # Open the browser automatically
  anitrack auth login --no-browser   # Print the authorization URL instead`,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	authCmd.AddCommand(authLoginCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var authOpts []auth.ManagerOption
	if loginNoBrowser {
		authOpts = append(authOpts, auth.WithBrowserLauncher(func(url string) error {
			fmt.Printf("Open this URL in your browser to sign in:\n%s\n", url)
			return nil
		}))
	}

	a, err := newApp(authOpts...)
	if err != nil {
		return err
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for authorization in the browser..."
	s.Start()

	token, err := a.manager.Authenticate(ctx)
	s.Stop()
	if err != nil {
		if token != nil {
			// The token works for this session but could not be attributed
			// or stored; the user should know the next run will re-prompt.
			fmt.Printf("Signed in, but the credential could not be saved: %v\n", err)
			return nil
		}
		return &cli.AuthFailedError{Reason: err}
	}

	cred, err := a.store.GetAuth(ctx)
	if err == nil && cred != nil {
		fmt.Printf("Signed in as AniList user %d.\n", cred.UserID)
	} else {
		fmt.Println("Signed in.")
	}
	return nil
}
