// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounded-copilot/internal/eval"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run a batch of questions and summarize the outcomes",
	Long: `Eval answers every question in a query file (a YAML or JSON list, or a
mapping with "queries" and an optional "k") and prints the start of each
answer followed by a count of verified, fallback and blocked runs.`,
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	queriesPath, _ := cmd.Flags().GetString("queries")
	k, _ := cmd.Flags().GetInt("k")
	excerpt, _ := cmd.Flags().GetInt("excerpt")
	outPath, _ := cmd.Flags().GetString("out")

	queries, fileK, err := eval.LoadQueries(queriesPath)
	if err != nil {
		return err
	}
	if k < 1 {
		k = fileK
	}

	e, err := initPipeline(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	rep, err := eval.NewRunner(e.orch, k, excerpt).Run(cmd.Context(), queries, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := eval.WriteReport(outPath, rep); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outPath)
	}
	if rep.Errors > 0 {
		return fmt.Errorf("%d of %d queries failed", rep.Errors, len(queries))
	}
	return nil
}

func init() {
	evalCmd.Flags().String("queries", "eval/queries.yaml", "query file (YAML or JSON)")
	evalCmd.Flags().Int("k", 0, "retrieval width (default from the query file or config)")
	evalCmd.Flags().Int("excerpt", eval.DefaultExcerpt, "characters of each answer to print")
	evalCmd.Flags().String("out", "", "write the full report to this YAML or JSON file")

	rootCmd.AddCommand(evalCmd)
}
