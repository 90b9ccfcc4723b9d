package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kiraleos/assignment-helper/internal/auth"
	"github.com/spf13/cobra"
)

var (
	tokenStudent string
	tokenTTL     time.Duration
)

// tokenCmd mints a bearer token for local testing against a JWT-protected server.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a JWT for a student",
	Long: `Signs an HS256 token with JWT_SECRET whose subject is the given student.

Example:
  assignment-helper token --student 64f1c0ffee --ttl 2h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := auth.GenerateJWT(secret, tokenStudent, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenStudent, "student", "", "student ID to put in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("student")
}
