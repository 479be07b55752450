package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema to the configured database",
	Long: `Apply the embedded schema for STORAGE_DRIVER (postgres or sqlite).

The schema uses IF NOT EXISTS throughout, so running it twice is harmless.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := openRepositories(cmd)
		if err != nil {
			return err
		}
		defer repos.Close()

		if err := repos.Migrate(cmd.Context()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", repos.Driver)
		return nil
	},
}
