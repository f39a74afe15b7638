package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/docket/internal/identity"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     uint
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a known user",
		Long:  "Signs a token with server.jwt_secret carrying the user's role and display name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, userID, ttl)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&userID, "user", 0, "user ID (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, configPath string, userID uint, ttl time.Duration) error {
	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)
	if err := cfg.RequireServer(); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	actor, err := identity.Lookup(cmd.Context(), gormDB, userID)
	if err != nil {
		return err
	}
	token, err := identity.NewJWTProvider(cfg.Server.JWTSecret).Issue(*actor, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
