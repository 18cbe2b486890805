package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"anitrack/internal/anilist"
	"anitrack/internal/cli"
)

// Search-specific flags
var (
	searchPage    int
	searchPerPage int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search anime by title",
	Long: `Search AniList for anime by title.

Matched titles are cached locally so repeated lookups stay fast.

Examples:
  anitrack search "cowboy bebop"
  anitrack search mushishi --page 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page to fetch")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 20, "Results per page")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.OfflineMode {
		return &cli.OfflineError{Operation: "search"}
	}

	query := strings.Join(args, " ")
	results, pageInfo, err := a.api.SearchAnime(cmd.Context(), query, searchPage, searchPerPage)
	if err != nil {
		if anilist.IsRateLimited(err) {
			return fmt.Errorf("AniList rate limit reached, try again shortly: %w", err)
		}
		return err
	}

	if len(results) == 0 {
		fmt.Printf("%s\n", text.FgYellow.Sprintf("No anime found for %q", query))
		return nil
	}

	for _, media := range results {
		if err := a.store.CacheMedia(cmd.Context(), media); err != nil {
			return err
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("ID"),
		text.FgHiCyan.Sprint("TITLE"),
		text.FgHiCyan.Sprint("FORMAT"),
		text.FgHiCyan.Sprint("EPISODES"),
		text.FgHiCyan.Sprint("SCORE"),
	})
	for _, media := range results {
		t.AppendRow(table.Row{
			media.ID,
			media.Title.Preferred(),
			media.Format,
			formatEpisodes(media.Episodes),
			formatScore(media.AverageScore),
		})
	}
	t.Render()

	if pageInfo != nil && pageInfo.HasNextPage {
		fmt.Printf("Page %d of %d. Use --page %d for more.\n",
			pageInfo.CurrentPage, pageInfo.LastPage, pageInfo.CurrentPage+1)
	}
	return nil
}

func formatEpisodes(episodes *int) string {
	if episodes == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *episodes)
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *score)
}
