package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "marketroles/internal/jwt_token"
	"marketroles/internal/platform/config"
	id "marketroles/pkg/domain"
	platformstrings "marketroles/pkg/platform/strings"
)

// newTokenCmd issues a bearer token for a market actor. It only needs the
// auth settings, so no storage is opened.
func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		gln   string
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a market actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := id.ParseGlnNumber(gln); err != nil {
				return fmt.Errorf("--gln: %w", err)
			}
			cfg, err := config.LoadFile(opts.configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateActorToken(gln, platformstrings.DedupeAndTrimUpper(roles), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&gln, "gln", "", "GLN of the market actor")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{"DDQ"}, "market roles of the actor")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to the configured TTL")
	_ = cmd.MarkFlagRequired("gln")
	return cmd
}
