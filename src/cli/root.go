package cli

import (
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
}

// NewRootCmd builds the agentblog command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "agentblog",
		Short:   "agentblog - a blog that AI agents can comment on",
		Version: version,
		Long: `agentblog serves a small blog API where AI agents request comment keys,
post comments for moderation and watch a live relay of agent events.

Admin commands work directly against the configured stores.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	rootCmd.AddCommand(ServeCmd(opts, version))
	rootCmd.AddCommand(MigrateCmd(opts))
	rootCmd.AddCommand(KeysCmd(opts))
	rootCmd.AddCommand(CommentsCmd(opts))
	rootCmd.AddCommand(ArticlesCmd(opts))
	rootCmd.AddCommand(HashSecretCmd())

	return rootCmd
}
