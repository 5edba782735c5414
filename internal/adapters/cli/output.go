package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/domain"
)

var (
	authorColor   = color.New(color.FgCyan)
	favoriteColor = color.New(color.FgYellow, color.Bold)
	noticeColor   = color.New(color.Faint)
)

// TodayOutput is the --json form of today and refresh.
type TodayOutput struct {
	Quote       domain.Quote `json:"quote"`
	IsFavorite  bool         `json:"isFavorite"`
	Origin      string       `json:"origin"`
	LastRefresh string       `json:"lastRefresh,omitempty"`
}

// ShareOutput is the --json form of share.
type ShareOutput struct {
	Text string `json:"text"`
}

// MembershipOutput is the --json form of fav and unfav.
type MembershipOutput struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"isFavorite"`
	Changed    bool   `json:"changed"`
}

func (r *runner) printSnapshot(cmd *cobra.Command, snap app.Snapshot) error {
	if snap.CurrentQuote == nil {
		return errNoQuote
	}

	quote := *snap.CurrentQuote
	favorite := snap.Favorites.Contains(quote.ID)

	if r.opts.json {
		return writeJSON(cmd.OutOrStdout(), TodayOutput{
			Quote:       quote,
			IsFavorite:  favorite,
			Origin:      string(snap.Origin),
			LastRefresh: snap.LastRefresh,
		})
	}

	w := cmd.OutOrStdout()
	writeQuote(w, quote)

	if favorite {
		favoriteColor.Fprintln(w, "  * favorite")
	}

	if snap.Origin == domain.OriginFallback {
		noticeColor.Fprintln(w, "  (quote service unavailable, showing the offline quote)")
	}

	return nil
}

func (r *runner) printShare(cmd *cobra.Command, text string) error {
	if r.opts.json {
		return writeJSON(cmd.OutOrStdout(), ShareOutput{Text: text})
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)

	return err
}

func (r *runner) printFavorites(cmd *cobra.Command, favorites domain.Favorites) error {
	if r.opts.json {
		return writeJSON(cmd.OutOrStdout(), favorites)
	}

	w := cmd.OutOrStdout()

	if len(favorites) == 0 {
		_, err := fmt.Fprintln(w, "No favorites yet.")
		return err
	}

	for i, q := range favorites {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, q.ID, q.ShareText())
	}

	return nil
}

func (r *runner) printMembership(cmd *cobra.Command, quote domain.Quote, favorite, changed bool) error {
	if r.opts.json {
		return writeJSON(cmd.OutOrStdout(), MembershipOutput{ID: quote.ID, IsFavorite: favorite, Changed: changed})
	}

	var msg string

	switch {
	case favorite && changed:
		msg = "Added %s to favorites.\n"
	case favorite:
		msg = "%s is already a favorite.\n"
	default:
		msg = "Removed %s from favorites.\n"
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), msg, quote.ID)

	return err
}

func writeQuote(w io.Writer, q domain.Quote) {
	fmt.Fprintf(w, "\"%s\"\n", q.Text)

	if q.Author != "" {
		authorColor.Fprintf(w, "    - %s\n", q.Author)
	}
}

// printFavoritesTable renders favorites as numbered rows.
func printFavoritesTable(w io.Writer, favorites domain.Favorites) error {
	if len(favorites) == 0 {
		_, err := fmt.Fprintln(w, "No favorites yet.")
		return err
	}

	rows := make([][]string, 0, len(favorites))
	for i, q := range favorites {
		rows = append(rows, []string{strconv.Itoa(i + 1), q.ID, q.Text, q.Author})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "ID", "Quote", "Author"})

	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("building table: %w", err)
	}

	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
