// Package cli implements the qotd terminal commands on top of the quote store.
//
// Each invocation opens its own store over the configured storage, so the
// CLI and a running service share favorites and the daily quote through
// storage only.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/qotd/internal/app"
)

// Session is a quote store opened for one command invocation.
type Session struct {
	Store *app.QuoteStore

	closeFn func() error
}

// NewSession wraps store. closeFn releases the resources behind it and may be nil.
func NewSession(store *app.QuoteStore, closeFn func() error) *Session {
	return &Session{Store: store, closeFn: closeFn}
}

// Close releases the session's storage.
func (s *Session) Close() error {
	if s.closeFn == nil {
		return nil
	}

	return s.closeFn()
}

// OpenOptions are the global flags that shape a session.
type OpenOptions struct {
	// Profile selects configs/<profile>.yaml.
	Profile string

	// Verbose logs at the configured level instead of warnings only.
	Verbose bool
}

// Opener opens a session.
type Opener func(ctx context.Context, opts OpenOptions) (*Session, error)

// BuildInfo is printed by the version command.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type rootOptions struct {
	profile string
	verbose bool
	json    bool
	noColor bool
}

// runner carries what every subcommand needs.
type runner struct {
	open Opener
	opts *rootOptions
}

// NewRootCommand builds the qotd command tree.
func NewRootCommand(open Opener, build BuildInfo) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "qotd",
		Short:         "Show the quote of the day and manage favorite quotes.",
		Long:          `qotd shows one quote per day, cached until the local date changes, and keeps a list of favorites.`,
		Version:       build.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.profile, "profile", defaultProfile(), "configuration profile (configs/<profile>.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level to stderr")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	r := &runner{open: open, opts: opts}

	root.AddCommand(
		r.todayCmd(),
		r.refreshCmd(),
		r.shareCmd(),
		r.favoritesCmd(),
		r.favCmd(),
		r.unfavCmd(),
		versionCmd(build),
	)

	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context, open Opener, build BuildInfo) error {
	return NewRootCommand(open, build).ExecuteContext(ctx)
}

// withStore opens a session, runs fn and closes the session.
func (r *runner) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *app.QuoteStore) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := r.open(ctx, OpenOptions{Profile: r.opts.profile, Verbose: r.opts.verbose})
	if err != nil {
		return fmt.Errorf("opening quote store: %w", err)
	}

	defer func() {
		if closeErr := sess.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing storage: %w", closeErr)
		}
	}()

	return fn(ctx, sess.Store)
}

func defaultProfile() string {
	if p := os.Getenv("APP_ENVIRONMENT"); p != "" {
		return p
	}

	return "local"
}

func versionCmd(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information.",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("qotd\n")
			cmd.Printf("  Version: %s\n", build.Version)
			cmd.Printf("  Commit:  %s\n", build.Commit)
			cmd.Printf("  Built:   %s\n", build.BuildTime)
			cmd.Printf("  Runtime: %s\n", runtime.Version())
		},
	}
}
