// Package cmd implements the attendctl operator commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/repository"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "attendctl",
	Short: "Operator CLI for the attendance decision engine",
	Long: `attendctl manages the attendance engine's storage and credentials.

It reads the same environment (and .env file) as the API server.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openRepositories connects to the configured storage. Callers must Close it.
func openRepositories(cmd *cobra.Command) (*repository.Repositories, error) {
	return repository.Open(cmd.Context(), cfg)
}

func outputJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
