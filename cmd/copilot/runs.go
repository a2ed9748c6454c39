// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs (list, show)",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	runs, err := l.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-3s  %-4s  %s\n", "Run", "Time", "Outcome", "Att", "Ev", "Question")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		q := r.Question
		if len(q) > 40 {
			q = q[:37] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-3d  %-4d  %s\n",
			r.RunID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.Attempts, r.Evidence, q)
	}
	return nil
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run with its answer and evidence",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	run, err := l.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Fprintf(w, "Question:  %s\n", run.State.Question)
	fmt.Fprintf(w, "Recorded:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Outcome:   %s\n", run.Outcome)
	fmt.Fprintf(w, "Trace:     %s\n", strings.Join(run.State.Trace, " > "))
	if run.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
	fmt.Fprintln(w)
	printStatus(w, run.State)
	return nil
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsListCmd.Flags().Bool("json", false, "output as JSON")
	runsShowCmd.Flags().Bool("json", false, "output as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
