// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/watermark-hook/internal/history"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the history of stamped and failed files",
	Long: `History reads the SQLite database kept by sweep, watch, and the hook
when run with --record.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded files",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := historyOptsFromFlags(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistory(os.Stdout, recs, jsonOutput)
}

func formatHistory(w io.Writer, recs []types.FileRecord, jsonOutput bool) error {
	if jsonOutput {
		if recs == nil {
			recs = []types.FileRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(w, "No files recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-11s  %-19s  %s\n", "Status", "Updated", "Path")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range recs {
		line := fmt.Sprintf("%-11s  %-19s  %s", r.Status, formatUpdated(r.UpdatedAt), r.Path)
		if r.Message != "" {
			line += "  (" + r.Message + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d files\n", len(recs))
	return nil
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the history to YAML or JSON",
	Long: `Export writes the history (or the subset matching --status) to
export.yaml or export.json in the state directory.`,
	Args: cobra.NoArgs,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case history.FormatYAML, history.FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	opts, err := historyOptsFromFlags(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	path, err := store.ExportFile(cmd.Context(), format, opts)
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func historyOptsFromFlags(cmd *cobra.Command) (history.ListOptions, error) {
	status, _ := cmd.Flags().GetString("status")
	if status == "" {
		return history.ListOptions{}, nil
	}
	st, err := parseStatus(status)
	if err != nil {
		return history.ListOptions{}, err
	}
	return history.ListOptions{Statuses: []types.FileStatus{st}}, nil
}

func parseStatus(s string) (types.FileStatus, error) {
	switch st := types.FileStatus(s); st {
	case types.StatusWatermarked, types.StatusStamped, types.StatusFailed, types.StatusKnown:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q: use watermarked, stamped, failed, or known", s)
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	historyCmd.PersistentFlags().String("status", "", "filter by status: watermarked, stamped, failed, known")

	historyListCmd.Flags().Bool("json", false, "output records as JSON")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
