package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/alpine-guardian/internal/bootstrap"
	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/usecase"
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("location", "", "restrict to documents for this location")
	cmd.Flags().String("category", "", "restrict to a knowledge category (weather, avalanche, hiking, ...)")
	cmd.Flags().Bool("json", false, "print the raw JSON result")
}

func filterFromFlags(cmd *cobra.Command) (domain.RetrievalFilter, error) {
	location, _ := cmd.Flags().GetString("location")
	category, _ := cmd.Flags().GetString("category")
	return domain.NewRetrievalFilter(&location, &category)
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 5, "maximum number of results")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	app, err := bootstrap.New(cmd.Context(), loadConfig(), bootstrap.Options{PopulateOnStart: true})
	if err != nil {
		return err
	}
	defer app.Close()

	resp, err := app.SearchUC.Search(cmd.Context(), strings.Join(args, " "), filter, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd, resp)
	}
	if resp.Degraded {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: retrieval unavailable, no results")
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCORE\tCATEGORY\tLOCATION\tTITLE")
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", r.RelevanceScore, r.Metadata[domain.MetaCategory], r.Location, r.Title)
	}
	return tw.Flush()
}

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a safety question and print the answer with its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	addFilterFlags(cmd)
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig()
	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{PopulateOnStart: true, ProbeGeneration: true})
	if err != nil {
		return err
	}
	defer app.Close()

	bundle, err := app.QueryUC.Answer(cmd.Context(), domain.QueryRequest{
		Query:    strings.Join(args, " "),
		Filter:   filter,
		Limit:    cfg.RAGTopK,
		Location: filter.Location,
	})
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd, bundle)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, bundle.Message)
	_, _ = fmt.Fprintf(out, "\nconfidence: %.2f  model: %v\n", bundle.Confidence, bundle.Metadata["model_used"])
	if reason, ok := bundle.Metadata["fallback_reason"]; ok {
		_, _ = fmt.Fprintf(out, "fallback: %v\n", reason)
	}
	for i, s := range bundle.Sources {
		_, _ = fmt.Fprintf(out, "[%d] %s (%.2f) %s\n", i+1, s.Title, s.RelevanceScore, usecase.TruncateForDisplay(s.Content, 80))
	}
	return nil
}
