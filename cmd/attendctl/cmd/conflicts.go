package cmd

import (
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	catalogService "github.com/cmlabs-hris/attendance-engine/internal/service/catalog"
	"github.com/spf13/cobra"
)

var conflictsFailOnError bool

func init() {
	conflictsCmd.Flags().BoolVar(&conflictsFailOnError, "fail-on-error", false, "Exit non-zero when error-severity conflicts are found")
	rootCmd.AddCommand(conflictsCmd)
}

// errConflictsFound is returned with --fail-on-error.
var errConflictsFound = errors.New("rule catalog has error-severity conflicts")

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Audit the rule catalog and print the conflict report as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := openRepositories(cmd)
		if err != nil {
			return err
		}
		defer repos.Close()

		catalog := catalogService.NewCatalogService(repos.Catalog, repos.Persons, catalogService.Options{}, nil)
		report, err := catalog.Conflicts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to audit rule catalog: %w", err)
		}

		if err := outputJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}

		if conflictsFailOnError && report.Count(rule.SeverityError) > 0 {
			return errConflictsFound
		}
		return nil
	},
}
