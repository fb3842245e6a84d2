package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/auth"
	"github.com/fentz26/listsync/internal/config"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/store"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts (operates on the database directly)",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user and print a bearer token for it",
	RunE:  runUserAdd,
}

var userTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a new bearer token for an existing user",
	RunE:  runUserToken,
}

var (
	userEmail string
	userName  string
	tokenTTL  time.Duration
)

func init() {
	userCmd.AddCommand(userAddCmd, userTokenCmd)
	userCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	userCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "Database path or DSN (overrides config)")
	userCmd.PersistentFlags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
	userCmd.PersistentFlags().StringVar(&userEmail, "email", "", "User email (required)")
	userCmd.MarkPersistentFlagRequired("email")

	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name (defaults to the email's local part)")
}

func openUserStore() (*config.Config, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.TokenSecret == "" {
		return nil, nil, fmt.Errorf("%w: token_secret is required to issue tokens (set LISTSYNC_TOKEN_SECRET)", config.ErrInvalid)
	}
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, s, err := openUserStore()
	if err != nil {
		return err
	}
	defer s.Close()

	name := userName
	if name == "" {
		name, _, _ = strings.Cut(userEmail, "@")
	}
	user, err := s.CreateUser(context.Background(), userEmail, name)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return printToken(cfg, user)
}

func runUserToken(cmd *cobra.Command, args []string) error {
	cfg, s, err := openUserStore()
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.GetUserByEmail(context.Background(), userEmail)
	if err != nil {
		return fmt.Errorf("find user %s: %w", userEmail, err)
	}
	return printToken(cfg, user)
}

func printToken(cfg *config.Config, user *models.User) error {
	token, err := auth.Mint(cfg.TokenSecret, user.ID, user.Email, tokenTTL, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("User:  %s (%s)\n", user.ID, user.Email)
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("\nSign in with: listsync login --token %s\n", token)
	return nil
}
