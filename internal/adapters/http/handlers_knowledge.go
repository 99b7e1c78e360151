package httpadapter

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

type searchRequest struct {
	Query        string  `json:"query" validate:"required,notblank,max=1000"`
	Limit        *int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	Location     *string `json:"location,omitempty"`
	ActivityType *string `json:"activity_type,omitempty"`
}

func (rt *Router) searchKnowledgeGet(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := searchRequest{Query: params.Get("query")}
	if raw := strings.TrimSpace(params.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse limit", errors.New("limit must be an integer")))
			return
		}
		req.Limit = &limit
	}
	if params.Has("location") {
		location := params.Get("location")
		req.Location = &location
	}
	if params.Has("activity_type") {
		activity := params.Get("activity_type")
		req.ActivityType = &activity
	}
	if err := validateRequest(&req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.search(w, r, req)
}

func (rt *Router) searchKnowledgePost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.search(w, r, req)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request, req searchRequest) {
	filter, err := domain.NewRetrievalFilter(req.Location, req.ActivityType)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	limit := rt.defaultLimit()
	if req.Limit != nil {
		limit = *req.Limit
	}

	startedAt := time.Now()
	resp, err := rt.deps.Search.Search(r.Context(), strings.TrimSpace(req.Query), filter, limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordRAGObservation(serviceName, "knowledge_search", resp.TotalFound, time.Since(startedAt))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=200"`
}

type updateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (rt *Router) updateKnowledge(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeOptionalJSONBody(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "api"
	}

	if err := rt.deps.Updater.RequestUpdate(r.Context(), reason); err != nil {
		rt.writeError(w, r, err)
		return
	}
	requestLogger(r).Info("knowledge_update_requested", "reason", reason)
	writeJSON(w, http.StatusAccepted, updateResponse{
		Status:  "update_started",
		Message: "Knowledge base update initiated in background",
	})
}
