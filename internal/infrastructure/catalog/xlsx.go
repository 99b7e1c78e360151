package catalog

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

// readXLSX reads the first sheet. The first row is a header naming the document fields;
// unknown columns are ignored and empty rows skipped.
func readXLSX(path string) ([]domain.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx catalog: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrCatalogInvalid, "read xlsx catalog", fmt.Errorf("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrCatalogInvalid, "read xlsx catalog", fmt.Errorf("sheet %s is empty", sheets[0]))
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "content"} {
		if _, ok := columns[required]; !ok {
			return nil, domain.WrapError(domain.ErrCatalogInvalid, "read xlsx catalog", fmt.Errorf("missing %q column", required))
		}
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	docs := make([]domain.Document, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		docs = append(docs, domain.Document{
			ID:       cell(row, "id"),
			Title:    cell(row, "title"),
			Content:  cell(row, "content"),
			Category: cell(row, "category"),
			Location: cell(row, "location"),
			DocType:  cell(row, "doc_type"),
			Source:   cell(row, "source"),
		})
	}
	return docs, nil
}
