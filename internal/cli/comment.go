package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sujalbistaa/confessly/internal/models"
)

type commentOptions struct {
	Body   string
	Gender string
}

// NewCommentCommand creates the comment command.
func NewCommentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &commentOptions{}

	cmd := &cobra.Command{
		Use:     "comment <confession-id>",
		Short:   "Comment on a confession",
		Example: `  confess comment 3f2a9c1e-... --body "same here"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComment(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Body, "body", "b", "", "comment text, or - for stdin (required)")
	cmd.Flags().StringVarP(&opts.Gender, "gender", "g", string(models.GenderIncognito), "male, female or incognito")

	return cmd
}

func runComment(cmd *cobra.Command, rootOpts *RootOptions, opts *commentOptions, confessionID string) error {
	out := rootOpts.formatter(cmd)

	body, err := readBody(cmd, opts.Body)
	if err != nil {
		return err
	}
	draft := models.CommentDraft{Body: body, Gender: models.Gender(opts.Gender)}
	if err := draft.Validate(false); err != nil {
		return WrapExitError(ExitCommandError, "post comment", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
	defer cancel()
	created, err := rootOpts.client().CreateComment(ctx, confessionID, draft)
	if err != nil {
		return requestError("post comment", err)
	}
	return out.Success(created, func(w io.Writer) {
		fmt.Fprintf(w, "Commented %s on %s\n", created.ID, confessionID)
	})
}

// NewCommentsCommand creates the comments command, which lists a
// confession's comments oldest first.
func NewCommentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <confession-id>",
		Short: "List the comments on a confession",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
			defer cancel()

			comments, err := rootOpts.client().ListComments(ctx, args[0])
			if err != nil {
				return requestError("list comments", err)
			}
			return out.Success(comments, func(w io.Writer) {
				if len(comments) == 0 {
					fmt.Fprintln(w, "No comments yet.")
				}
				for _, c := range comments {
					fmt.Fprintf(w, "%s  %-9s %s\n", c.CreatedAt.UTC().Format("2006-01-02 15:04"), c.Gender, c.Body)
				}
			})
		},
	}
}
