// Package catalog loads the curated safety documents the index is built from.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

//go:embed builtin.yaml
var builtinYAML []byte

type file struct {
	Documents []domain.Document `json:"documents" yaml:"documents"`
}

// Static is an in-memory, validated catalog.
type Static struct {
	docs []domain.Document
}

func NewStatic(docs []domain.Document) (*Static, error) {
	out := make([]domain.Document, len(docs))
	copy(out, docs)
	if err := Validate(out); err != nil {
		return nil, err
	}
	return &Static{docs: out}, nil
}

func (s *Static) All(context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

// Builtin returns the curated Swiss alpine safety catalog shipped with the binary.
func Builtin() (*Static, error) {
	docs, err := decodeYAML(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	return NewStatic(docs)
}

// LoadFile reads a catalog from a .yaml, .yml, .json or .xlsx file.
func LoadFile(path string) (*Static, error) {
	var (
		docs []domain.Document
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		docs, err = readWith(path, decodeYAML)
	case ".json":
		docs, err = readWith(path, decodeJSON)
	case ".xlsx":
		docs, err = readXLSX(path)
	default:
		return nil, domain.WrapError(domain.ErrCatalogInvalid, "load catalog", fmt.Errorf("unsupported catalog format %q", ext))
	}
	if err != nil {
		return nil, err
	}
	return NewStatic(docs)
}

func readWith(path string, decode func([]byte) ([]domain.Document, error)) ([]domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return decode(raw)
}

func decodeYAML(raw []byte) ([]domain.Document, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, domain.WrapError(domain.ErrCatalogInvalid, "decode yaml catalog", err)
	}
	return f.Documents, nil
}

// decodeJSON accepts either {"documents": [...]} or a bare array.
func decodeJSON(raw []byte) ([]domain.Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var docs []domain.Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, domain.WrapError(domain.ErrCatalogInvalid, "decode json catalog", err)
		}
		return docs, nil
	}
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, domain.WrapError(domain.ErrCatalogInvalid, "decode json catalog", err)
	}
	return f.Documents, nil
}

// Validate rejects empty catalogs, blank content or titles and duplicate ids.
// Missing ids are assigned from the document position.
func Validate(docs []domain.Document) error {
	if len(docs) == 0 {
		return domain.WrapError(domain.ErrCatalogInvalid, "validate catalog", fmt.Errorf("catalog has no documents"))
	}
	seen := make(map[string]int, len(docs))
	for i := range docs {
		doc := &docs[i]
		doc.ID = strings.TrimSpace(doc.ID)
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("document-%d", i+1)
		}
		if strings.TrimSpace(doc.Title) == "" {
			return domain.WrapError(domain.ErrCatalogInvalid, "validate catalog", fmt.Errorf("document %s: title is required", doc.ID))
		}
		if strings.TrimSpace(doc.Content) == "" {
			return domain.WrapError(domain.ErrCatalogInvalid, "validate catalog", fmt.Errorf("document %s: content is required", doc.ID))
		}
		if prev, ok := seen[doc.ID]; ok {
			return domain.WrapError(domain.ErrCatalogInvalid, "validate catalog", fmt.Errorf("duplicate id %s at positions %d and %d", doc.ID, prev+1, i+1))
		}
		seen[doc.ID] = i
	}
	return nil
}

// Categories returns the distinct categories in catalog order.
func Categories(docs []domain.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range docs {
		if d.Category == "" {
			continue
		}
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}
	return out
}
