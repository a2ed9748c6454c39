// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/grounded-copilot/internal/draft"
	"github.com/pdiddy/grounded-copilot/internal/retrieval"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [draft-file]",
	Short: "Check a draft's citations against saved evidence",
	Long: `Verify reads a draft from a file (or stdin when the file is "-") and
checks it against an evidence file written by "copilot retrieve --save".
It applies the same checks as the answer pipeline and exits non-zero when
the draft is not grounded.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	evidencePath, _ := cmd.Flags().GetString("evidence")

	ef, err := retrieval.ReadEvidenceFile(evidencePath)
	if err != nil {
		return err
	}

	var text []byte
	if args[0] == "-" {
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return eris.Wrap(err, "reading draft")
	}

	verdict := draft.NewVerifier(draft.PolicyFromConfig(cfg.Verification)).Verify(string(text), ef.Records)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Evidence:  %d records for %q\n", len(ef.Records), ef.Query.Question)
	fmt.Fprintf(w, "Citations: %d\n", len(verdict.Citations))
	if verdict.Grounded {
		fmt.Fprintln(w, "Verified:  Yes")
		return nil
	}
	fmt.Fprintln(w, "Verified:  No")
	fmt.Fprintf(w, "Failure:   %s\n", verdict.Failure)
	fmt.Fprintf(w, "Detail:    %s\n", verdict.Detail)
	if unknown := draft.UnknownCitations(string(text), ef.Records); len(unknown) > 0 {
		fmt.Fprintln(w, "Unknown citations:")
		for _, tag := range unknown {
			fmt.Fprintf(w, "  [%s]\n", tag)
		}
	}
	return fmt.Errorf("draft is not grounded: %s", verdict.Failure)
}

func init() {
	verifyCmd.Flags().String("evidence", "", "evidence file written by retrieve --save")
	verifyCmd.MarkFlagRequired("evidence")

	rootCmd.AddCommand(verifyCmd)
}
