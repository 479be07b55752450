package cmd

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
	tokenJSON    bool
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject, e.g. the kiosk id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(jwt.RoleDevice), "Role: device, sweeper, admin")
	tokenCmd.Flags().BoolVar(&tokenJSON, "json", false, "Print token and expiry as JSON")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

type tokenOutput struct {
	Token     string `json:"token"`
	Subject   string `json:"subject"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for a device, sweeper or admin",
	Long: `Mint an access token signed with JWT_SECRET_KEY.

Examples:
  attendctl token --subject kiosk-lobby --role device
  attendctl token --subject absence-sweep --role sweeper --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role := jwt.Role(tokenRole)
		if !role.Valid() {
			return jwt.ErrInvalidRole
		}

		service := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
		token, expiresAt, err := service.GenerateAccessToken(tokenSubject, role)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		if tokenJSON {
			return outputJSON(cmd.OutOrStdout(), tokenOutput{
				Token:     token,
				Subject:   tokenSubject,
				Role:      string(role),
				ExpiresAt: time.Unix(expiresAt, 0).UTC().Format(time.RFC3339),
			})
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
