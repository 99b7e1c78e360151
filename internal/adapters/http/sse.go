package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/observability/logging"
)

const streamChunkRunes = 120

type streamEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Content string `json:"content,omitempty"`

	Sources            []domain.Source `json:"sources,omitempty"`
	Confidence         *float64        `json:"confidence,omitempty"`
	ResponseTime       *float64        `json:"response_time,omitempty"`
	ModelUsed          string          `json:"model_used,omitempty"`
	LocationContext    *string         `json:"location_context,omitempty"`
	GenerationMetadata map[string]any  `json:"generation_metadata,omitempty"`
}

// buildAnswerStream splits the message into content events followed by one final event with the evidence.
func buildAnswerStream(streamID string, resp chatResponse, chunkRunes int) []streamEvent {
	parts := splitByRunes(resp.Message, chunkRunes)
	events := make([]streamEvent, 0, len(parts)+1)
	for idx, part := range parts {
		events = append(events, streamEvent{
			ID:      streamID,
			Type:    "chunk",
			Index:   idx,
			Content: part,
		})
	}

	confidence := resp.Confidence
	responseTime := resp.ResponseTime
	sources := resp.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	events = append(events, streamEvent{
		ID:                 streamID,
		Type:               "final",
		Index:              len(parts),
		Sources:            sources,
		Confidence:         &confidence,
		ResponseTime:       &responseTime,
		ModelUsed:          resp.ModelUsed,
		LocationContext:    resp.LocationContext,
		GenerationMetadata: resp.Metadata,
	})
	return events
}

func writeEventStream(w http.ResponseWriter, events []streamEvent) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func splitByRunes(text string, chunkRunes int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}
	if chunkRunes <= 0 || utf8.RuneCountInString(text) <= chunkRunes {
		return []string{text}
	}

	runes := []rune(text)
	parts := make([]string, 0, len(runes)/chunkRunes+1)
	for start := 0; start < len(runes); start += chunkRunes {
		end := min(start+chunkRunes, len(runes))
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

func requestLogger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context())
}
