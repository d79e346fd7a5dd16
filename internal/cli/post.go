package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sujalbistaa/confessly/internal/models"
)

type postOptions struct {
	Title    string
	Body     string
	Gender   string
	Category string
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &postOptions{}

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a confession",
		Long: `Post an anonymous confession.

Pass --body - to read the body from standard input.`,
		Example: `  confess post --title "I never read the book" --body "..." --category Education
  echo "long story" | confess post --title "Confession" --body - --gender female`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "confession title (required)")
	cmd.Flags().StringVarP(&opts.Body, "body", "b", "", "confession body, or - for stdin (required)")
	cmd.Flags().StringVarP(&opts.Gender, "gender", "g", string(models.GenderIncognito), "male, female or incognito")
	cmd.Flags().StringVarP(&opts.Category, "category", "c", string(models.CategoryOther), "confession category")

	return cmd
}

func runPost(cmd *cobra.Command, rootOpts *RootOptions, opts *postOptions) error {
	out := rootOpts.formatter(cmd)

	body, err := readBody(cmd, opts.Body)
	if err != nil {
		return err
	}
	draft := models.ConfessionDraft{
		Title:    opts.Title,
		Body:     body,
		Gender:   models.Gender(opts.Gender),
		Category: models.Category(opts.Category),
	}
	if err := draft.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "post confession", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
	defer cancel()
	created, err := rootOpts.client().CreateConfession(ctx, draft)
	if err != nil {
		return requestError("post confession", err)
	}
	out.VerboseLog("created %s", created.ID)

	link := strings.TrimRight(rootOpts.Server, "/") + "/c/" + created.Slug
	return out.Success(created, func(w io.Writer) {
		fmt.Fprintf(w, "Posted %s\n%s\n", created.ID, link)
	})
}

// readBody returns flag, or standard input when flag is "-".
func readBody(cmd *cobra.Command, flag string) (string, error) {
	if flag != "-" {
		return flag, nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", WrapExitError(ExitCommandError, "read body from stdin", err)
	}
	return string(raw), nil
}
