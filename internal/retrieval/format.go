// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// FormatTable writes merged evidence as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Records) == 0 {
		fmt.Fprintln(w, "No evidence found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-30s  %-4s  %-10s  %-6s  %s\n",
		"Rank", "Source", "Page", "Chunk", "Score", "Text")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range out.Records {
		fmt.Fprintf(w, "%-4d  %-30s  %-4d  %-10s  %-6.3f  %s\n",
			i+1, truncate(r.Source, 30), r.Page, r.ChunkID, r.Score, truncate(oneLine(r.Text), 48))
	}

	fmt.Fprintf(w, "\n%d records", len(out.Records))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)

	for _, e := range out.VariantErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
}

// FormatJSON writes the output as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FormatSources writes one numbered line per record:
// "1. A.pdf p.1 chunk_0 (score=0.120)".
func FormatSources(records []types.EvidenceRecord, w io.Writer) {
	for i, r := range records {
		fmt.Fprintf(w, "%d. %s (score=%.3f)\n", i+1, r.Tag(), r.Score)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
