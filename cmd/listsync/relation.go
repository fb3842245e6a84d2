package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var relationCmd = &cobra.Command{
	Use:     "relation",
	Aliases: []string{"rel"},
	Short:   "Manage shared lists",
}

var relationCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a list, optionally with initial tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationCreate,
}

var relationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the lists you can access",
	RunE:  runRelationList,
}

var relationShowCmd = &cobra.Command{
	Use:   "show [relation-id]",
	Short: "Show a list and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationShow,
}

var relationShareCmd = &cobra.Command{
	Use:   "share [relation-id] [email]",
	Short: "Give another user edit access to a list",
	Args:  cobra.ExactArgs(2),
	RunE:  runRelationShare,
}

var initialTasks []string

func init() {
	relationCmd.AddCommand(relationCreateCmd, relationListCmd, relationShowCmd, relationShareCmd)
	relationCreateCmd.Flags().StringArrayVar(&initialTasks, "task", nil, "Initial task text (repeatable)")
}

func runRelationCreate(cmd *cobra.Command, args []string) error {
	req := controlplane.CreateRelationRequest{Name: args[0]}
	for _, text := range initialTasks {
		req.Tasks = append(req.Tasks, controlplane.NewTask{ID: uuid.New().String(), Text: text})
	}

	resp, err := apiPost("/relations", req)
	if err != nil {
		return err
	}

	var rel models.RelationWithTasks
	if err := json.Unmarshal(resp, &rel); err != nil {
		return err
	}
	fmt.Printf("Created list: %s (%s) with %d task(s)\n", rel.Name, rel.ID, len(rel.Tasks))
	return nil
}

func runRelationList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/relations")
	if err != nil {
		return err
	}

	var relations []models.RelationSummary
	if err := json.Unmarshal(resp, &relations); err != nil {
		return err
	}

	if len(relations) == 0 {
		fmt.Println("No lists found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPERMISSION\tSHARED WITH\tMODIFIED")
	for _, r := range relations {
		names := make([]string, 0, len(r.SharedWith))
		for _, u := range r.SharedWith {
			names = append(names, u.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, truncate(r.Name, 40), r.Permission, strings.Join(names, ", "),
			r.LastModified.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func runRelationShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/relations/" + args[0])
	if err != nil {
		return err
	}

	var rel controlplane.RelationDetail
	if err := json.Unmarshal(resp, &rel); err != nil {
		return err
	}

	fmt.Printf("List:        %s\n", rel.Name)
	fmt.Printf("ID:          %s\n", rel.ID)
	fmt.Printf("Permission:  %s\n", rel.Permission)
	fmt.Printf("Created:     %s\n", rel.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Modified:    %s\n", rel.LastModified.Local().Format("2006-01-02 15:04:05"))
	if len(rel.SharedWith) > 0 {
		names := make([]string, 0, len(rel.SharedWith))
		for _, u := range rel.SharedWith {
			names = append(names, fmt.Sprintf("%s <%s>", u.Name, u.Email))
		}
		fmt.Printf("Shared with: %s\n", strings.Join(names, ", "))
	}

	if len(rel.Tasks) == 0 {
		fmt.Println("\nNo tasks")
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tTASK\tORDER")
	for _, t := range rel.Tasks {
		mark := "[ ]"
		if t.Completed() {
			mark = "[x]"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", mark, truncateID(t.ID), truncate(t.Text, 50), t.OrderIdx)
	}
	w.Flush()
	return nil
}

func runRelationShare(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/relations/"+args[0]+"/share", controlplane.ShareRequest{Email: args[1]})
	if err != nil {
		return err
	}

	var perm models.Permission
	if err := json.Unmarshal(resp, &perm); err != nil {
		return err
	}
	fmt.Printf("Shared %s with %s (%s)\n", truncateID(perm.RelationID), args[1], perm.Level)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
