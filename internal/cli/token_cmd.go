package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/class-builder-api/internal/models"
)

func newTokenCmd(app *App) *cobra.Command {
	var user, role, email, name string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.UserRole(strings.ToUpper(role))
			switch r {
			case models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher, models.RoleStudent:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			token, expiresAt, err := app.Tokens.Issue(user, r, email, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "SUPERADMIN, ADMIN, TEACHER or STUDENT")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "full name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
