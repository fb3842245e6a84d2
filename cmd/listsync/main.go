package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "listsync",
	Short: "listsync - shared lists with offline sync",
	Long: `listsync serves shared task lists to clients that work offline and replay
their changes later as a batch, resolving conflicts last-writer-wins.`,
	SilenceUsage: true,
}

var (
	apiAddr  string
	apiToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from login, else http://127.0.0.1:7480)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "Bearer token (default $LISTSYNC_TOKEN, else from login)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd)
	rootCmd.AddCommand(relationCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
