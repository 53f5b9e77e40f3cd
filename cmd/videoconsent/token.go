package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sendrec/videoconsent/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token for PUT /api/config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := getEnv("ADMIN_JWT_SECRET", "")
		if secret == "" {
			return errors.New("ADMIN_JWT_SECRET is required")
		}
		subject, err := cmd.Flags().GetString("subject")
		if err != nil {
			return err
		}
		ttl, err := cmd.Flags().GetDuration("ttl")
		if err != nil {
			return err
		}
		if ttl <= 0 {
			return errors.New("--ttl must be positive")
		}

		token, err := auth.GenerateToken(secret, subject, auth.RoleAdmin, ttl)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().String("subject", "admin", "Subject recorded in the token and in config change logs")
	tokenCmd.Flags().Duration("ttl", auth.DefaultTokenDuration, "How long the token stays valid")
}
