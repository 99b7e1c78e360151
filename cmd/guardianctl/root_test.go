package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// withOllama points loadConfig at a fake Ollama that embeds every text by keyword.
func withOllama(t *testing.T) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			if strings.Contains(strings.ToLower(text), "avalanche") {
				out[i] = []float32{1, 0}
			} else {
				out[i] = []float32{0, 1}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	prev := loadConfig
	loadConfig = func() config.Config {
		return config.Config{
			EmbedProvider:        "ollama",
			GenProvider:          "ollama",
			OllamaURL:            server.URL,
			OllamaGenModel:       "llama3.1:8b",
			OllamaEmbedModel:     "nomic-embed-text",
			VectorBackend:        "memory",
			CatalogSource:        "builtin",
			RAGTopK:              3,
			RAGPopulateBatchSize: 10,
			EmergencyNumber:      "1414",
		}
	}
	t.Cleanup(func() { loadConfig = prev })
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"populate", "search", "ask", "catalog", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "guardianctl 1.0.0\n", out)
}

func TestCatalogValidate_Builtin(t *testing.T) {
	out, err := execute(t, "catalog", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "19 documents")
	assert.Contains(t, out, "avalanche")
}

func TestCatalogValidate_RejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - id: blank\n    title: \"\"\n    content: \"\"\n"), 0o600))

	_, err := execute(t, "catalog", "validate", path)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrCatalogInvalid))
}

func TestSearchCommand_FiltersByCategory(t *testing.T) {
	withOllama(t)

	out, err := execute(t, "search", "avalanche", "danger", "--category", "avalanche", "--json")
	require.NoError(t, err)

	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "avalanche danger", resp.Query)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "avalanche", r.Metadata[domain.MetaCategory])
	}
}

func TestSearchCommand_RejectsInvalidInput(t *testing.T) {
	_, err := execute(t, "search", "avalanche", "--limit", "0")
	assert.Error(t, err)

	_, err = execute(t, "search", "avalanche", "--category", "   ")
	assert.True(t, domain.IsKind(err, domain.ErrInvalidFilter))
}

func TestAskCommand_FallsBackWithoutModel(t *testing.T) {
	withOllama(t)

	out, err := execute(t, "ask", "is", "the", "avalanche", "risk", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "1414")
	assert.Contains(t, out, "fallback: "+domain.FallbackGenerationUnavailable)
}

func TestPopulateCommand_IndexesCatalog(t *testing.T) {
	withOllama(t)

	out, err := execute(t, "populate", "--batch-size", "5")
	require.NoError(t, err)
	assert.Equal(t, "indexed 19 documents in 4 batches\n", out)

	out, err = execute(t, "populate", "--rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 19 documents")
}
