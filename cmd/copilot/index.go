// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/grounded-copilot/internal/knowledge"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local evidence index (ingest, export)",
	Long: `Index manages the SQLite evidence index used by the sqlite backend.
Chunk manifests (<name>-chunks.yaml) in <index_dir>/chunks/ are loaded
into a full-text index; each chunk is cited as "source p.N chunk_id".`,
}

var indexIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load chunk manifests into the evidence index",
	Long: `Ingest reads every chunk manifest in <index_dir>/chunks/ and indexes its
chunks for full-text search. Manifests unchanged since the last run are
skipped.`,
	RunE: runIndexIngest,
}

func runIndexIngest(cmd *cobra.Command, args []string) error {
	store, err := openLocalStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(cmd.Context(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d manifest(s) failed indexing", summary.Failed)
	}
	return nil
}

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every indexed chunk with its citation tag",
	RunE:  runIndexExport,
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openLocalStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	path, err := store.Export(cmd.Context(), knowledge.ExportFormat(format))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

// openLocalStore opens the sqlite index, honoring --index-dir.
func openLocalStore(cmd *cobra.Command) (*knowledge.Store, error) {
	evCfg := cfg.Evidence
	if dir, _ := cmd.Flags().GetString("index-dir"); dir != "" {
		evCfg.IndexDir = dir
	}
	if evCfg.Backend != types.BackendSQLite {
		return nil, eris.Errorf("index commands need the sqlite backend, evidence.backend is %q", evCfg.Backend)
	}
	return knowledge.NewStore(evCfg)
}

func init() {
	indexCmd.PersistentFlags().String("index-dir", "", "index base directory (default from evidence.index_dir)")
	indexExportCmd.Flags().String("format", string(knowledge.FormatYAML), "export format: yaml or json")

	indexCmd.AddCommand(indexIngestCmd)
	indexCmd.AddCommand(indexExportCmd)
	rootCmd.AddCommand(indexCmd)
}
