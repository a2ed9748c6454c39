// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounded-copilot/internal/retrieval"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [question]",
	Short: "Show the merged evidence a question would be answered from",
	Long: `Retrieve runs the question and every configured variant against the
evidence store, merges the results (one record per source, page and chunk,
best score kept) and prints them ranked best first. No text is generated.

Use --save to write the evidence to a YAML file that "copilot verify" can
check a draft against.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("k")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	savePath, _ := cmd.Flags().GetString("save")
	question := strings.Join(args, " ")
	if k < 1 {
		k = cfg.Retrieval.DefaultK
	}

	e, err := initRetrieval(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	out, err := e.merger.Search(cmd.Context(), question, k)
	if err != nil {
		return err
	}

	if savePath != "" {
		if err := retrieval.WriteEvidenceFile(savePath, question, k, e.merger.Queries(question), out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Evidence saved to %s\n", savePath)
	}

	if jsonOutput {
		return retrieval.FormatJSON(out, cmd.OutOrStdout())
	}
	retrieval.FormatTable(out, cmd.OutOrStdout())
	return nil
}

func init() {
	retrieveCmd.Flags().Int("k", 0, "retrieval width (default from retrieval.default_k)")
	retrieveCmd.Flags().Bool("json", false, "output as JSON")
	retrieveCmd.Flags().String("save", "", "write the merged evidence to this YAML file")

	rootCmd.AddCommand(retrieveCmd)
}
