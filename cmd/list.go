package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"anitrack/internal/anilist"
	"anitrack/internal/cli"
)

// List-specific flags
var listStatus string

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show your anime list",
	Long: `Show your AniList anime list.

With offline_mode enabled in the configuration, entries come from the local
database instead of the API.

Examples:
  anitrack list
  anitrack list --status current
  anitrack list --status completed`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (current, planning, completed, dropped, paused, repeating)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var status *anilist.MediaListStatus
	if listStatus != "" {
		parsed, err := anilist.ParseMediaListStatus(listStatus)
		if err != nil {
			return err
		}
		status = &parsed
	}

	cred, err := a.store.GetAuth(cmd.Context())
	if err != nil {
		return err
	}
	if cred == nil {
		return &cli.AuthRequiredError{}
	}

	entries, err := fetchList(cmd.Context(), a, cred.UserID, status)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Printf("%s\n", text.FgYellow.Sprint("No list entries found"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("ID"),
		text.FgHiCyan.Sprint("TITLE"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("PROGRESS"),
		text.FgHiCyan.Sprint("SCORE"),
	})
	for _, entry := range entries {
		title := fmt.Sprintf("media %d", entry.MediaID)
		episodes := "?"
		if entry.Media != nil {
			title = entry.Media.Title.Preferred()
			episodes = formatEpisodes(entry.Media.Episodes)
		}
		progress := "0"
		if entry.Progress != nil {
			progress = fmt.Sprintf("%d", *entry.Progress)
		}
		t.AppendRow(table.Row{
			entry.MediaID,
			title,
			entry.Status.String(),
			fmt.Sprintf("%s/%s", progress, episodes),
			formatScore(entry.Score),
		})
	}
	t.Render()
	return nil
}

// fetchList reads the list from the API and mirrors it to the local database,
// or reads the local mirror directly in offline mode.
func fetchList(ctx context.Context, a *app, userID int, status *anilist.MediaListStatus) ([]anilist.MediaListEntry, error) {
	if a.cfg.OfflineMode {
		return a.store.UserList(ctx, userID, status)
	}

	entries, err := a.api.UserAnimeList(ctx, userID, status)
	if err != nil {
		if anilist.IsRateLimited(err) {
			return nil, fmt.Errorf("AniList rate limit reached, try again shortly: %w", err)
		}
		return nil, err
	}

	for _, entry := range entries {
		if err := a.store.SaveListEntry(ctx, userID, entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
