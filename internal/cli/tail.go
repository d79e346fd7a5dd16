package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sujalbistaa/confessly/internal/feed"
	"github.com/sujalbistaa/confessly/internal/models"
	"github.com/sujalbistaa/confessly/internal/ws"
)

type tailOptions struct {
	Category string
	Pages    int
	PageSize int
	Follow   bool
}

// NewTailCommand creates the tail command, which prints the newest
// confessions and optionally follows the feed live.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tailOptions{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the newest confessions",
		Long: `Print the newest confessions in a category, newest first.

With --follow the command keeps running and prints confessions as they are
posted, until interrupted.`,
		Example: `  confess tail --category Love
  confess tail --pages 3 --format json
  confess tail --follow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Category, "category", "c", string(models.CategoryAll), "category to show (All for every category)")
	cmd.Flags().IntVar(&opts.Pages, "pages", 1, "number of pages to load")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", feed.DefaultPageSize, "confessions per page")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep printing new confessions")

	return cmd
}

func runTail(cmd *cobra.Command, rootOpts *RootOptions, opts *tailOptions) error {
	out := rootOpts.formatter(cmd)
	category := models.Category(opts.Category)
	if !category.ValidFilter() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown category %q", opts.Category))
	}
	if opts.Pages < 1 || opts.PageSize < 1 {
		return NewExitError(ExitCommandError, "--pages and --page-size must be positive")
	}
	if opts.PageSize > models.MaxPageSize {
		return NewExitError(ExitCommandError, fmt.Sprintf("--page-size must be at most %d", models.MaxPageSize))
	}

	ctx := cmd.Context()
	if opts.Follow {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	c := rootOpts.client()
	var subscriber feed.Subscriber
	if opts.Follow {
		subscriber = &ws.Dialer{URL: c.WebsocketURL()}
	}
	logOut := io.Discard
	if rootOpts.Verbose {
		logOut = out.GetErrWriter()
	}
	f := feed.New(c, subscriber, feed.Options{
		PageSize: opts.PageSize,
		Logger:   log.New(logOut, "", log.LstdFlags),
	})
	defer f.Close()

	loadCtx, cancel := context.WithTimeout(ctx, rootOpts.Timeout)
	defer cancel()
	out.VerboseLog("loading %s from %s", category, rootOpts.Server)
	if err := f.SelectCategory(loadCtx, category); err != nil {
		return WrapExitError(ExitFailure, "load feed", err)
	}
	for page := 1; page < opts.Pages; page++ {
		if f.Window().ExhaustedOlder {
			break
		}
		if err := f.LoadOlder(loadCtx); err != nil {
			return WrapExitError(ExitFailure, "load older confessions", err)
		}
	}

	w := f.Window()
	if err := out.Success(w.Confessions, func(wr io.Writer) {
		if len(w.Confessions) == 0 {
			fmt.Fprintln(wr, "No confessions yet.")
		}
		for _, entry := range w.Confessions {
			writeConfession(wr, entry)
		}
	}); err != nil {
		return err
	}
	if !opts.Follow {
		return nil
	}
	return follow(ctx, f, out, w.Confessions)
}

// follow prints entries that appear in the window after the first render
// until ctx is done.
func follow(ctx context.Context, f *feed.Feed, out *OutputFormatter, shown []feed.Confession) error {
	seen := make(map[string]bool, len(shown))
	for _, c := range shown {
		seen[c.ID] = true
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-f.Notices():
			if !ok {
				return nil
			}
			out.Warn("warning: %s", n.Message)
		case _, ok := <-f.Changes():
			if !ok {
				return nil
			}
			for _, c := range f.Window().Confessions {
				if seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				entry := c
				if err := out.Success(entry, func(wr io.Writer) { writeConfession(wr, entry) }); err != nil {
					return err
				}
			}
		}
	}
}

func writeConfession(w io.Writer, c feed.Confession) {
	fmt.Fprintf(w, "%s  [%s] %s\n", c.CreatedAt.UTC().Format("2006-01-02 15:04"), c.Category, c.Title)
	fmt.Fprintf(w, "    %s\n", c.Body)
	fmt.Fprintf(w, "    %s, %d likes, %d comments, id %s\n\n", c.Gender, c.Likes, c.CommentCount, c.ID)
}
