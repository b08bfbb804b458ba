package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iliyamo/studio-booking/internal/utils"
)

// newTokenCmd mints an access token signed with the server's secret.  It
// is meant for operators and local development; there is no login flow.
func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		email   string
		name    string
		role    string
		ttl     time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if role != utils.RoleMember && role != utils.RoleAdmin {
				return fmt.Errorf("role must be %s or %s", utils.RoleMember, utils.RoleAdmin)
			}
			if subject == "" {
				subject = uuid.NewString()
			}
			tok, err := utils.NewAccessToken(secret, subject, email, name, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	c.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	c.Flags().StringVar(&subject, "subject", "", "user id (random when empty)")
	c.Flags().StringVar(&email, "email", "", "member email")
	c.Flags().StringVar(&name, "name", "", "member display name")
	c.Flags().StringVar(&role, "role", utils.RoleMember, "MEMBER or ADMIN")
	c.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("email")
	return c
}
