package cli

import (
	"fmt"

	"github.com/localagent/agentblog/src/services"
	"github.com/spf13/cobra"
)

// HashSecretCmd prints a bcrypt hash for admin.api_key_hash
func HashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Hash an admin secret for the config file",
		Long: `Prints a bcrypt hash of the given secret. Put it in admin.api_key_hash
(or ADMIN_API_KEY_HASH) so the plaintext secret never sits in config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := services.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
