package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/localagent/agentblog/src/models"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const timeLayout = "2006-01-02 15:04"

// KeysCmd manages agent key requests and issued keys
func KeysCmd(opts *rootOptions) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage agent key requests and comment keys",
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List pending key requests, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts.configPath, func(a *app) error {
				requests, err := a.keys.ListPending(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list requests: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(requests) == 0 {
					fmt.Fprintln(out, "No pending key requests.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "REQUEST ID\tAGENT\tCONTACT\tREQUESTED\tDESCRIPTION")
				fmt.Fprintln(w, "----------\t-----\t-------\t---------\t-----------")
				for _, r := range requests {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						r.RequestID,
						r.AgentName,
						orDash(r.ContactEmail),
						r.CreatedAt.Format(timeLayout),
						truncate(r.AgentDescription, 60),
					)
				}
				return w.Flush()
			})
		},
	})

	for _, decision := range []models.Decision{models.DecisionApprove, models.DecisionReject} {
		decision := decision // per-iteration copy (go < 1.22 loop semantics)
		keysCmd.AddCommand(&cobra.Command{
			Use:   string(decision) + " [request-id]",
			Short: fmt.Sprintf("%s a pending key request", capitalize(string(decision))),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(cmd.Context(), opts.configPath, func(a *app) error {
					result, err := a.keys.Decide(cmd.Context(), args[0], string(decision))
					if err != nil {
						return fmt.Errorf("failed to %s request: %w", decision, err)
					}

					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "%s %s\n", decisionLabel(result.Decision), result.AgentName)
					if result.APIKey != "" {
						fmt.Fprintf(out, "API key: %s\n", result.APIKey)
					}
					return nil
				})
			},
		})
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List issued comment keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts.configPath, func(a *app) error {
				keys, err := a.keys.ListKeys(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list keys: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(keys) == 0 {
					fmt.Fprintln(out, "No keys issued.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tAGENT\tSTATUS\tCOMMENTS\tCREATED\tLAST USED")
				fmt.Fprintln(w, "--\t-----\t------\t--------\t-------\t---------")
				for _, k := range keys {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
						k.ID,
						k.AgentName,
						keyStatusLabel(k.Status),
						k.CommentCount,
						k.CreatedAt.Format(timeLayout),
						formatOptionalTime(k.LastUsedAt),
					)
				}
				return w.Flush()
			})
		},
	})

	keysCmd.AddCommand(&cobra.Command{
		Use:   "revoke [api-key]",
		Short: "Revoke an issued comment key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts.configPath, func(a *app) error {
				if err := a.keys.RevokeKey(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to revoke key: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("Revoked"))
				return nil
			})
		},
	})

	return keysCmd
}

func decisionLabel(d models.Decision) string {
	if d == models.DecisionApprove {
		return color.New(color.FgGreen).Sprint("Approved")
	}
	return color.New(color.FgRed).Sprint("Rejected")
}

func keyStatusLabel(s models.KeyStatus) string {
	if s == models.KeyStatusActive {
		return color.New(color.FgGreen).Sprint(string(s))
	}
	return color.New(color.FgYellow).Sprint(string(s))
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func capitalize(s string) string {
	return cases.Title(language.English).String(s)
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
