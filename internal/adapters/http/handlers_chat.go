package httpadapter

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

type chatRequest struct {
	Message      string       `json:"message" validate:"required,notblank,max=4000"`
	Location     *string      `json:"location,omitempty"`
	ActivityType *string      `json:"activity_type,omitempty"`
	Context      *chatContext `json:"context,omitempty"`
}

type chatContext struct {
	Weather *domain.WeatherContext `json:"weather,omitempty"`
}

func (req chatRequest) toQuery(limit int) (domain.QueryRequest, error) {
	filter, err := domain.NewRetrievalFilter(req.Location, req.ActivityType)
	if err != nil {
		return domain.QueryRequest{}, err
	}
	out := domain.QueryRequest{
		Query:    strings.TrimSpace(req.Message),
		Filter:   filter,
		Limit:    limit,
		Location: filter.Location,
	}
	if req.Context != nil {
		out.Weather = req.Context.Weather
	}
	return out, nil
}

type chatResponse struct {
	*domain.AnswerBundle
	ModelUsed       string  `json:"model_used"`
	LocationContext *string `json:"location_context"`
}

func newChatResponse(bundle *domain.AnswerBundle) chatResponse {
	resp := chatResponse{AnswerBundle: bundle, ModelUsed: "fallback"}
	if model, ok := bundle.Metadata["model_used"].(string); ok && model != "" {
		resp.ModelUsed = model
	}
	if location, ok := bundle.Metadata["location_context"].(string); ok && location != "" {
		resp.LocationContext = &location
	}
	return resp
}

func (rt *Router) answer(r *http.Request, endpoint string) (*domain.AnswerBundle, error) {
	var req chatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	query, err := req.toQuery(rt.defaultLimit())
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	bundle, err := rt.deps.Query.Answer(r.Context(), query)
	if err != nil {
		return nil, err
	}

	if rt.deps.Metrics != nil {
		reason, _ := bundle.Metadata["fallback_reason"].(string)
		rt.deps.Metrics.RecordRAGObservation(serviceName, endpoint, len(bundle.Retrieved), time.Since(startedAt))
		rt.deps.Metrics.RecordAnswer(serviceName, bundle.Confidence, reason)
	}
	return bundle, nil
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	bundle, err := rt.answer(r, "chat")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(bundle))
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming is not supported"})
		return
	}

	bundle, err := rt.answer(r, "chat_stream")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	resp := newChatResponse(bundle)
	events := buildAnswerStream("chat-"+uuid.NewString(), resp, streamChunkRunes)
	if err := writeEventStream(w, events); err != nil {
		requestLogger(r).Warn("chat_stream_write_failed", "error", err)
	}
}
