package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// MigrateCmd applies or rolls back the schema of both stores
func MigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Long:      "Runs the embedded migrations of the blog store and the key store.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.configPath, openOptions{quiet: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.migrate(args[0]); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, db := range []struct {
				name    string
				version func() (uint, bool, error)
			}{
				{a.stores.Blog.Name(), a.stores.Blog.MigrationVersion},
				{a.stores.Keys.Name(), a.stores.Keys.MigrationVersion},
			} {
				version, dirty, err := db.version()
				if err != nil {
					return err
				}
				state := color.New(color.FgGreen).Sprint("OK")
				if dirty {
					state = color.New(color.FgRed).Sprint("DIRTY")
				}
				fmt.Fprintf(out, "%-5s version %d %s\n", db.name, version, state)
			}
			return nil
		},
	}
}
