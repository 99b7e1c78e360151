package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/alpine-guardian/internal/bootstrap"
)

func newPopulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Index the catalog into the vector store",
		Long: "Embed every catalog document and write it to the configured vector index. " +
			"Without --rebuild a non-empty index is left untouched.",
		Args: cobra.NoArgs,
		RunE: runPopulate,
	}
	cmd.Flags().Bool("rebuild", false, "clear the index and index the catalog again")
	cmd.Flags().Int("batch-size", 0, "documents per embedding batch (default RAG_POPULATE_BATCH_SIZE)")
	return cmd
}

func runPopulate(cmd *cobra.Command, _ []string) error {
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	out := cmd.OutOrStdout()

	cfg := loadConfig()
	if batchSize < 0 {
		return fmt.Errorf("--batch-size must be positive")
	}
	if batchSize > 0 {
		cfg.RAGPopulateBatchSize = batchSize
	}
	if cfg.VectorBackend == "memory" {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: VECTOR_BACKEND=memory, the index lives only for this command")
	}

	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{PopulateOnStart: !rebuild})
	if err != nil {
		return err
	}
	defer app.Close()

	report := app.PopulateReport
	if rebuild {
		report, err = app.UpdateUC.Rebuild(cmd.Context(), "guardianctl")
		if err != nil {
			return err
		}
	}

	if report.Skipped {
		_, _ = fmt.Fprintf(out, "index already holds %d documents, nothing to do (use --rebuild to re-index)\n", report.Documents)
		return nil
	}
	_, _ = fmt.Fprintf(out, "indexed %d documents in %d batches\n", report.Documents, report.Batches)
	return nil
}
