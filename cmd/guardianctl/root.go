package main

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/alpine-guardian/internal/bootstrap"
	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/observability/logging"
)

// NewRootCmd creates the guardianctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "guardianctl",
		Short:         "Operate the Alpine Guardian knowledge base",
		Long:          "guardianctl populates, searches and queries the Alpine Guardian safety knowledge base using the same configuration as the API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), "guardianctl", level))
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPopulateCmd(),
		newSearchCmd(),
		newAskCmd(),
		newCatalogCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte("guardianctl " + bootstrap.Version + "\n"))
			return err
		},
	}
}

// loadConfig is swapped in tests.
var loadConfig = config.Load

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
