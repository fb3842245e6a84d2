package main

import (
	"fmt"
	"time"

	"github.com/fentz26/listsync/internal/auth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a token so later commands use it",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := m.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := resolveToken()
	if token == "" {
		return fmt.Errorf("a token is required: listsync login --token <token>")
	}

	m, err := auth.NewManager()
	if err != nil {
		return err
	}
	session, err := m.Login(resolveAPI(), token, time.Now())
	if err != nil {
		return err
	}
	if !m.IsAuthenticated(time.Now()) {
		fmt.Println("Warning: token is expired or about to expire")
	}

	if _, err := apiGet("/relations"); err != nil {
		fmt.Printf("Warning: saved, but the daemon rejected the token: %v\n", err)
	}

	fmt.Printf("Logged in as %s on %s\n", session.UserID, session.API)
	return nil
}
