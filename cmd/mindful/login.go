package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/mindful/pkg/session"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the hosted auth service and print the owner id",
	Long: `Sign in with email and password against the configured auth service
(MINDFUL_AUTH_URL, MINDFUL_AUTH_API_KEY). The printed owner id can be passed
to other commands with --owner or MINDFUL_OWNER.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if cfg.AuthURL == "" {
			fatal("Cannot sign in", errors.New("no auth service configured (MINDFUL_AUTH_URL)"))
		}
		if loginPassword == "" {
			loginPassword = os.Getenv("MINDFUL_PASSWORD")
		}

		provider := session.NewHosted(session.HostedConfig{
			BaseURL: cfg.AuthURL,
			APIKey:  cfg.AuthAPIKey,
			Logger:  slog.Default(),
		})
		user, err := provider.SignInWithPassword(context.Background(), loginEmail, loginPassword)
		if err != nil {
			fatal("Failed to sign in", err)
		}

		fmt.Printf("Signed in as %s\n", user.Email)
		fmt.Printf("export MINDFUL_OWNER=%s\n", user.ID)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (default: MINDFUL_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("email")
}
