package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/fentz26/listsync/internal/auth"
	"github.com/fentz26/listsync/internal/tui"
	"github.com/spf13/cobra"
)

var (
	queuePath string
	noDaemon  bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	Long: `Opens the terminal client. Edits are queued on disk and replayed to the
daemon whenever it is reachable, so the client keeps working offline.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&queuePath, "queue", tui.DefaultQueuePath(), "Path of the offline operation queue")
	tuiCmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "Do not start a local daemon when none is reachable")
}

func runTUI(cmd *cobra.Command, args []string) error {
	api := resolveAPI()
	token := resolveToken()
	if token == "" {
		return fmt.Errorf("not logged in: run `listsync login --token <token>` or pass --token")
	}
	claims, err := auth.PeekClaims(token)
	if err != nil {
		return err
	}

	// 1. Start a local daemon unless one answers or we were told not to
	if !isDaemonRunning(api) && !noDaemon {
		fmt.Println("⚡ listsync daemon not running. Starting background service...")
		if err := startDaemon(api); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v; continuing offline\n", err)
		}
	}

	queue, err := tui.OpenQueue(queuePath)
	if err != nil {
		return err
	}

	// 2. Launch TUI
	app := tui.New(tui.Options{
		API:    api,
		Token:  token,
		UserID: claims.UserID,
		Email:  claims.Email,
		Queue:  queue,
	})
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func startDaemon(addr string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Start "listsync daemon" in background
	cmd := exec.Command(exe, "daemon")
	// Detach process so it survives TUI exit
	configureDaemonProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ {
		if isDaemonRunning(addr) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", addr)
}
