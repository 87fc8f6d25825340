package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/flowbench-core/internal/api"
	"github.com/nerrad567/flowbench-core/internal/infrastructure/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator access token",
	Long: `Signs an operator token with the configured JWT secret. Pass it to the API
as "Authorization: Bearer <token>".`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "operator name recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.GetAccessTokenTTL()
	}
	token, err := api.IssueToken(cfg.Security.JWT.Secret, tokenSubject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
