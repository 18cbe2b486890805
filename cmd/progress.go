package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"anitrack/internal/anilist"
	"anitrack/internal/cli"
)

// Progress-specific flags
var (
	progressStatus string
	progressScore  float64
)

// progressCmd represents the progress command
var progressCmd = &cobra.Command{
	Use:   "progress <media-id> <episodes>",
	Short: "Update watch progress for an anime",
	Long: `Update the watched episode count of a list entry.

The entry is created on AniList when it does not exist yet. Status and score
can be set in the same call.

Examples:
  anitrack progress 5114 12
  anitrack progress 5114 64 --status completed --score 95`,
	Args: cobra.ExactArgs(2),
	RunE: runProgress,
}

func init() {
	progressCmd.Flags().StringVar(&progressStatus, "status", "", "Also set the entry status (current, planning, completed, dropped, paused, repeating)")
	progressCmd.Flags().Float64Var(&progressScore, "score", 0, "Also set the entry score")
	rootCmd.AddCommand(progressCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	mediaID, err := strconv.Atoi(args[0])
	if err != nil || mediaID <= 0 {
		return fmt.Errorf("invalid media id %q", args[0])
	}
	episodes, err := strconv.Atoi(args[1])
	if err != nil || episodes < 0 {
		return fmt.Errorf("invalid episode count %q", args[1])
	}

	var status *anilist.MediaListStatus
	if progressStatus != "" {
		parsed, err := anilist.ParseMediaListStatus(progressStatus)
		if err != nil {
			return err
		}
		status = &parsed
	}
	var score *float64
	if cmd.Flags().Changed("score") {
		score = &progressScore
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.OfflineMode {
		return &cli.OfflineError{Operation: "progress update"}
	}

	cred, err := a.store.GetAuth(cmd.Context())
	if err != nil {
		return err
	}
	if cred == nil {
		return &cli.AuthRequiredError{}
	}

	entry, err := a.api.SaveListEntry(cmd.Context(), mediaID, status, &episodes, score)
	if err != nil {
		if anilist.IsRateLimited(err) {
			return fmt.Errorf("AniList rate limit reached, try again shortly: %w", err)
		}
		return err
	}

	// Mirror the change locally so offline reads see it.
	if err := a.store.SaveListEntry(cmd.Context(), cred.UserID, *entry); err != nil {
		return err
	}

	title := fmt.Sprintf("media %d", mediaID)
	if media, err := a.api.AnimeDetails(cmd.Context(), mediaID); err == nil {
		title = media.Title.Preferred()
	}
	fmt.Printf("Updated %s: %d episode(s) watched, status %s.\n", title, episodes, entry.Status)
	return nil
}
