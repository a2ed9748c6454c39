// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounded-copilot/internal/retrieval"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with citations verified against retrieved evidence",
	Long: `Ask runs the question through the security gate, plans, retrieves
evidence, drafts a cited answer and verifies every citation. Drafts that
fail verification are retried with a wider retrieval; when retries run
out a fallback answer is printed instead.

Exit status is 0 for verified, fallback and refused answers, and non-zero
only when the evidence store or the language model failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("k")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	question := strings.Join(args, " ")

	e, err := initPipeline(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	state, err := e.orch.Run(cmd.Context(), question, k)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	printStatus(w, state)
	return nil
}

// printStatus writes the answer followed by the run status and the
// evidence it was checked against.
func printStatus(w io.Writer, s types.PipelineState) {
	fmt.Fprintf(w, "%s\n\n", s.FinalAnswer)
	fmt.Fprintln(w, strings.Repeat("-", 60))

	verified := "No"
	if s.Verified {
		verified = "Yes"
	}
	fmt.Fprintf(w, "Run:       %s\n", s.RunID)
	if s.Blocked {
		fmt.Fprintf(w, "Blocked:   %s\n", s.BlockReason)
		return
	}
	fmt.Fprintf(w, "Verified:  %s\n", verified)
	fmt.Fprintf(w, "Attempts:  %d\n", s.Attempts)
	fmt.Fprintf(w, "k:         %d\n", s.K)
	if s.FailureReason != "" {
		fmt.Fprintf(w, "Reason:    %s (%s)\n", s.FailureReason, s.Failure)
	}

	if s.Plan != "" {
		fmt.Fprintf(w, "\nPlan:\n%s\n", s.Plan)
	}
	if len(s.Research) > 0 {
		fmt.Fprintln(w, "\nResearch sources:")
		retrieval.FormatSources(s.Research, w)
	}
}

func init() {
	askCmd.Flags().Int("k", 0, "retrieval width (default from retrieval.default_k)")
	askCmd.Flags().Bool("json", false, "print the full run snapshot as JSON")

	rootCmd.AddCommand(askCmd)
}
