package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mailtriage/config"
	"mailtriage/pkg/rbac"
	"mailtriage/pkg/util"
)

var (
	// Flags for token command
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the approval API",
	Long: `Issue an HS256 bearer token signed with jwt.secret (JWT_SECRET).

Roles:
  viewer    may list pending emails
  operator  may also approve and reject

Examples:
  agent token --subject alice --role operator
  agent token --subject dashboard --role viewer --ttl 720h`,
	RunE: issueToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "Who the token is for (required)")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", rbac.RoleOperator, "Role granted by the token (viewer/operator)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func issueToken(cmd *cobra.Command, args []string) error {
	if !rbac.ValidRole(tokenRole) {
		return fmt.Errorf("unknown role %q (want %s or %s)", tokenRole, rbac.RoleViewer, rbac.RoleOperator)
	}
	if tokenTTL <= 0 {
		return errors.New("ttl must be positive")
	}

	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is not set; the approval API is running without authentication")
	}

	tok, err := util.GenerateJWT(tokenSubject, tokenRole, cfg.JWT.Secret, tokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
