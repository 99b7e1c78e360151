package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/catalog"
	"github.com/kirillkom/alpine-guardian/internal/infrastructure/repository/postgres"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and import safety document catalogs",
	}
	cmd.AddCommand(newCatalogValidateCmd(), newCatalogImportCmd())
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a catalog file (.yaml, .json, .xlsx); without FILE the builtin catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loadCatalogDocs(cmd, args)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d documents, categories: %s\n",
				len(docs), strings.Join(catalog.Categories(docs), ", "))
			return nil
		},
	}
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [FILE]",
		Short: "Upsert a catalog file into the Postgres catalog (POSTGRES_DSN)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loadCatalogDocs(cmd, args)
			if err != nil {
				return err
			}

			db, err := postgres.OpenDB(loadConfig().PostgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := postgres.NewCatalogRepository(db)
			if err := repo.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := repo.Upsert(cmd.Context(), docs); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents; run `guardianctl populate --rebuild` to re-index\n", len(docs))
			return nil
		},
	}
}

func loadCatalogDocs(cmd *cobra.Command, args []string) ([]domain.Document, error) {
	var (
		source *catalog.Static
		err    error
	)
	if len(args) == 0 {
		source, err = catalog.Builtin()
	} else {
		source, err = catalog.LoadFile(args[0])
	}
	if err != nil {
		return nil, err
	}
	return source.All(cmd.Context())
}
