package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/domain"
)

// errNoQuote is returned when the store has not resolved a quote, which
// Initialize and Refresh never leave it in.
var errNoQuote = errors.New("no quote available")

func (r *runner) todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Print today's quote, fetching one if none is cached for today.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withStore(cmd, func(ctx context.Context, store *app.QuoteStore) error {
				store.Initialize(ctx)
				return r.printSnapshot(cmd, store.Snapshot())
			})
		},
	}
}

func (r *runner) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch a new quote for today, replacing the cached one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withStore(cmd, func(ctx context.Context, store *app.QuoteStore) error {
				store.LoadFavorites(ctx)
				store.Refresh(ctx)

				return r.printSnapshot(cmd, store.Snapshot())
			})
		},
	}
}

func (r *runner) shareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Print today's quote formatted for sharing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withStore(cmd, func(ctx context.Context, store *app.QuoteStore) error {
				store.Initialize(ctx)

				quote := store.CurrentQuote()
				if quote == nil {
					return errNoQuote
				}

				return r.printShare(cmd, store.ShareText(*quote))
			})
		},
	}
}

func (r *runner) favoritesCmd() *cobra.Command {
	var table bool

	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"favs"},
		Short:   "List favorite quotes in the order they were added.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withStore(cmd, func(ctx context.Context, store *app.QuoteStore) error {
				store.LoadFavorites(ctx)

				if table && !r.opts.json {
					return printFavoritesTable(cmd.OutOrStdout(), store.Favorites())
				}

				return r.printFavorites(cmd, store.Favorites())
			})
		},
	}

	cmd.Flags().BoolVar(&table, "table", false, "print favorites as a table")

	return cmd
}

func (r *runner) favCmd() *cobra.Command {
	var current bool

	cmd := &cobra.Command{
		Use:   "fav [--current | <id> <text> [author]]",
		Short: "Add a quote to favorites.",
		Example: `  qotd fav --current
  qotd fav q42 "Simplicity is prerequisite for reliability." "Edsger Dijkstra"`,
		Args: func(cmd *cobra.Command, args []string) error {
			if current {
				return cobra.NoArgs(cmd, args)
			}

			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withStore(cmd, func(ctx context.Context, store *app.QuoteStore) error {
				quote, err := favTarget(ctx, store, current, args)
				if err != nil {
					return err
				}

				if store.IsFavorite(quote) {
					return r.printMembership(cmd, quote, true, false)
				}

				return r.printMembership(cmd, quote, store.ToggleFavorite(ctx, quote), true)
			})
		},
	}

	cmd.Flags().BoolVar(&current, "current", false, "favorite today's quote")

	return cmd
}

// favTarget resolves the quote named on the command line. Favorites are
// loaded first in both branches so the write-through keeps existing entries.
func favTarget(ctx context.Context, store *app.QuoteStore, current bool, args []string) (domain.Quote, error) {
	if current {
		store.Initialize(ctx)

		quote := store.CurrentQuote()
		if quote == nil {
			return domain.Quote{}, errNoQuote
		}

		return *quote, nil
	}

	quote := domain.Quote{ID: args[0], Text: args[1]}
	if len(args) == 3 {
		quote.Author = args[2]
	}

	if err := quote.Validate(); err != nil {
		return domain.Quote{}, err
	}

	store.LoadFavorites(ctx)

	return quote, nil
}

func (r *runner) unfavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfav <id>",
		Short: "Remove a quote from favorites.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withStore(cmd, func(ctx context.Context, store *app.QuoteStore) error {
				store.LoadFavorites(ctx)

				quote, ok := store.FavoriteByID(args[0])
				if !ok {
					return domain.NewNotFoundError("favorite", args[0])
				}

				return r.printMembership(cmd, quote, store.ToggleFavorite(ctx, quote), true)
			})
		},
	}
}
