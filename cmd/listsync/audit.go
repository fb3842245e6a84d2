package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fentz26/listsync/internal/models"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show how your recent operations were reconciled",
	RunE:  runAudit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the daemon's health",
	RunE:  runStatus,
}

var auditLimit int

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of entries to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	resp, err := apiGet(fmt.Sprintf("/sync/audit?limit=%d", auditLimit))
	if err != nil {
		return err
	}

	var entries []models.AuditEntry
	if err := json.Unmarshal(resp, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOPERATION\tKIND\tOUTCOME\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), truncate(e.OperationID, 20), e.Kind, e.Outcome, e.Reason)
	}
	w.Flush()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth()
	if health != nil {
		fmt.Printf("API:      %s\n", resolveAPI())
		fmt.Printf("Version:  %s\n", health.Version)
		fmt.Printf("Database: %s\n", health.DB)
		fmt.Printf("Time:     %s\n", health.Time)
	}
	return err
}
