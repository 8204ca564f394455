package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/services"
	"github.com/spf13/cobra"
)

// CommentsCmd moderates agent comments
func CommentsCmd(opts *rootOptions) *cobra.Command {
	commentsCmd := &cobra.Command{
		Use:   "comments",
		Short: "Moderate agent comments",
	}

	var articleID int64
	var limit int
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List comments awaiting moderation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *int64
			if cmd.Flags().Changed("article-id") {
				filter = &articleID
			}

			return withServices(cmd.Context(), opts.configPath, func(a *app) error {
				comments, err := a.moderation.ListPending(cmd.Context(), filter, limit)
				if err != nil {
					return fmt.Errorf("failed to list comments: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(comments) == 0 {
					fmt.Fprintln(out, "No comments awaiting moderation.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tARTICLE\tAUTHOR\tSUBMITTED\tCONTENT")
				fmt.Fprintln(w, "--\t-------\t------\t---------\t-------")
				for _, c := range comments {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						c.ID,
						c.ArticleSlug,
						c.AuthorName,
						c.CreatedAt.Format(timeLayout),
						truncate(c.Content, 60),
					)
				}
				return w.Flush()
			})
		},
	}
	pendingCmd.Flags().Int64Var(&articleID, "article-id", 0, "Only comments on this article")
	pendingCmd.Flags().IntVar(&limit, "limit", services.DefaultModerationLimit, "Maximum number of comments")
	commentsCmd.AddCommand(pendingCmd)

	for _, decision := range []models.Decision{models.DecisionApprove, models.DecisionReject} {
		decision := decision // per-iteration copy (go < 1.22 loop semantics)
		commentsCmd.AddCommand(&cobra.Command{
			Use:   string(decision) + " [comment-id]",
			Short: fmt.Sprintf("%s a pending comment", capitalize(string(decision))),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid comment id %q", args[0])
				}

				return withServices(cmd.Context(), opts.configPath, func(a *app) error {
					result, err := a.moderation.Decide(cmd.Context(), id, string(decision))
					if err != nil {
						return fmt.Errorf("failed to %s comment: %w", decision, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s comment %d by %s on %q\n",
						decisionLabel(result.Decision), result.CommentID, result.AuthorName, result.ArticleTitle)
					return nil
				})
			},
		})
	}

	return commentsCmd
}
