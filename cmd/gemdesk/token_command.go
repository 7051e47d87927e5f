package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gemdesk/internal/access"
)

const dateLayout = "2006-01-02"

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		role              string
		subject           string
		unverified        bool
		blocked           bool
		subscriptionUntil string
		dateStart         string
		dateEnd           string
		brands            []string
		categories        []string
		asJSON            bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed API token carrying a user's entitlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			issuer, err := access.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
			if err != nil {
				return fmt.Errorf("token: %w (set auth.jwt_secret)", err)
			}

			ent := access.Entitlement{
				Verified:   !unverified,
				Blocked:    blocked,
				Brands:     brands,
				Categories: categories,
			}
			for _, field := range []struct {
				flag  string
				value string
				dst   **time.Time
			}{
				{"subscription-until", subscriptionUntil, &ent.SubscriptionUntil},
				{"date-start", dateStart, &ent.DateStart},
				{"date-end", dateEnd, &ent.DateEnd},
			} {
				if strings.TrimSpace(field.value) == "" {
					continue
				}
				parsed, err := time.Parse(dateLayout, strings.TrimSpace(field.value))
				if err != nil {
					return fmt.Errorf("--%s: expected YYYY-MM-DD: %w", field.flag, err)
				}
				*field.dst = &parsed
			}
			if (ent.DateStart == nil) != (ent.DateEnd == nil) {
				return fmt.Errorf("--date-start and --date-end must be given together")
			}

			signed, expires, err := issuer.Mint(subject, role, ent)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"token":      signed,
					"expires_at": expires.UTC().Format(time.RFC3339),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, signed)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&role, "role", access.RoleUser, "Token role (admin or user)")
	flags.StringVar(&subject, "subject", "", "Token subject, usually the user's email")
	flags.BoolVar(&unverified, "unverified", false, "Mark the account as not verified")
	flags.BoolVar(&blocked, "blocked", false, "Mark the account as blocked")
	flags.StringVar(&subscriptionUntil, "subscription-until", "", "Last day of the subscription (YYYY-MM-DD)")
	flags.StringVar(&dateStart, "date-start", "", "First day of the assigned contract date range (YYYY-MM-DD)")
	flags.StringVar(&dateEnd, "date-end", "", "Last day of the assigned contract date range (YYYY-MM-DD)")
	flags.StringSliceVar(&brands, "brands", nil, "Allowed brands (comma separated, empty allows all)")
	flags.StringSliceVar(&categories, "categories", nil, "Allowed seller categories (comma separated, empty allows all)")
	flags.BoolVar(&asJSON, "json", false, "Print the token and expiry as JSON")
	return cmd
}
