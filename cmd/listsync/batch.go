package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Replay offline operations",
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a JSON array of operations (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchSubmit,
}

var batchCheck bool

func init() {
	batchCmd.AddCommand(batchSubmitCmd)
	batchSubmitCmd.Flags().BoolVar(&batchCheck, "check", false, "Validate the file locally without submitting it")
}

func readBatchFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runBatchSubmit(cmd *cobra.Command, args []string) error {
	body, err := readBatchFile(args[0])
	if err != nil {
		return err
	}

	ops, err := reconcile.ParseBatch(body)
	if err != nil {
		return err
	}
	if batchCheck {
		fmt.Printf("%d operation(s) OK\n", len(ops))
		return nil
	}

	resp, err := apiPostRaw("/sync/batch", body)
	if err != nil {
		return err
	}

	var result reconcile.BatchResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Applied %d of %d operation(s)\n", len(result.Success), len(ops))
	if len(result.Failed) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nOPERATION\tREASON\tSERVER VERSION")
	for _, f := range result.Failed {
		current := ""
		switch {
		case f.Task != nil:
			current = fmt.Sprintf("task %q @ %s", truncate(f.Task.Text, 30), f.Task.LastModified.Format("2006-01-02T15:04:05Z07:00"))
		case f.Relation != nil:
			current = fmt.Sprintf("list %q @ %s", truncate(f.Relation.Name, 30), f.Relation.LastModified.Format("2006-01-02T15:04:05Z07:00"))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID, f.Reason, current)
	}
	w.Flush()
	return nil
}
