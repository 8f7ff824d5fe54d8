package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reflex/internal/memory"
)

var auditLimit int

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage the semantic memory store",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered requests",
	RunE:  listMemory,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all remembered requests",
	RunE:  clearMemory,
}

var memoryAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the most recent run audit trail",
	RunE:  showAudit,
}

func init() {
	memoryAuditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of audit rows")
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	memoryCmd.AddCommand(memoryAuditCmd)
}

func openMemory() (*memory.Store, error) {
	return memory.Open(cfg.Memory.DatabasePath, logger)
}

func listMemory(cmd *cobra.Command, args []string) error {
	store, err := openMemory()
	if err != nil {
		return err
	}
	defer store.Close()

	records := store.All()
	if len(records) == 0 {
		fmt.Println("Memory is empty.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  (used %dx, %s)\n", rec.RawQuery,
			rec.SuccessCount+1, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Printf("  → %s\n", firstLine(rec.Answer))
	}
	fmt.Printf("\n%d records.\n", len(records))
	return nil
}

func clearMemory(cmd *cobra.Command, args []string) error {
	store, err := openMemory()
	if err != nil {
		return err
	}
	defer store.Close()

	n := store.Count()
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Printf("Cleared %d records.\n", n)
	return nil
}

func showAudit(cmd *cobra.Command, args []string) error {
	store, err := openMemory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(auditLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		status := "✓"
		if run.Status == "failed" {
			status = "✗"
		}
		fmt.Printf("%s %-12s %5dms  %s\n", status, run.Status, run.DurationMs, run.RawQuery)
		if run.Detail != "" {
			fmt.Printf("    %s\n", firstLine(run.Detail))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
