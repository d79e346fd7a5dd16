package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type likeResult struct {
	ID    string `json:"id"`
	Likes int    `json:"likes"`
}

// NewLikeCommand creates the like command.
func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "like <confession-id>",
		Short: "Like a confession",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.Timeout)
			defer cancel()

			c := rootOpts.client()
			id := args[0]
			if err := c.IncrementLike(ctx, id); err != nil {
				return requestError("like confession", err)
			}
			res := likeResult{ID: id, Likes: -1}
			if current, err := c.GetConfession(ctx, id); err != nil {
				out.VerboseLog("could not refresh like count: %v", err)
			} else {
				res.Likes = current.Likes
			}
			return out.Success(res, func(w io.Writer) {
				if res.Likes < 0 {
					fmt.Fprintf(w, "Liked %s\n", id)
					return
				}
				fmt.Fprintf(w, "Liked %s (%d likes)\n", id, res.Likes)
			})
		},
	}
}
