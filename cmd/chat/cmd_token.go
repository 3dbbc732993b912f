package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"langgraph-chat/app/pkg/jwt"
)

var (
	tokenSecret string
	tokenUserID string
	tokenEmail  string
	tokenName   string
	tokenExpiry time.Duration
)

// tokenCmd mints a development token the backend simulator accepts
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token for the backend simulator",
	Long: `Signs an HS256 token with the simulator's JWT secret.

The secret defaults to JWT_SECRET. Use the printed token with --token or CHAT_AUTH_TOKEN.

Example:
  chat token --user u-42 --name Ada --email ada@example.com`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Signing secret (default JWT_SECRET)")
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "Subject of the token (default a random id)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "First name claim")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 0, "Token lifetime (default JWT_EXPIRY or 24h)")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := tokenSecret
	if secret == "" {
		secret = cfg.JWT.Secret
	}
	expiry := tokenExpiry
	if expiry <= 0 {
		expiry = cfg.JWT.Expiry
	}
	userID := tokenUserID
	if userID == "" {
		userID = uuid.New().String()
	}

	svc, err := jwt.NewService(secret, expiry)
	if err != nil {
		return fmt.Errorf("cannot mint a token: %w", err)
	}
	token, err := svc.GenerateToken(userID, tokenEmail, tokenName)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
