package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/core/domain"
	"github.com/kirillkom/alpine-guardian/internal/core/ports"
	"github.com/kirillkom/alpine-guardian/internal/observability/logging"
	"github.com/kirillkom/alpine-guardian/internal/observability/metrics"
)

const serviceName = "api"

// StatusReporter describes providers and the knowledge base for /health and /models/status.
type StatusReporter interface {
	Status(ctx context.Context) domain.ServiceStatus
}

type Dependencies struct {
	Query   ports.SafetyQueryService
	Search  ports.KnowledgeSearcher
	Updater ports.KnowledgeUpdater
	Status  StatusReporter
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	cfg       config.Config
	deps      Dependencies
	startedAt time.Time
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	return &Router{
		cfg:       cfg,
		deps:      deps,
		startedAt: time.Now(),
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(recoverMiddleware)
	if rt.deps.Metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.deps.Metrics.Middleware(serviceName, routePattern, next)
		})
	}
	r.Use(corsMiddleware(rt.cfg.CORSAllowedOrigins))

	r.Get("/healthz", rt.healthz)
	r.Get("/health", rt.health)
	r.Get("/models/status", rt.modelStatus)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limit"))
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.rejected("backpressure"))
		})

		r.Post("/chat", rt.chat)
		r.Post("/chat/stream", rt.chatStream)
		r.Get("/knowledge/search", rt.searchKnowledgeGet)
		r.Post("/knowledge/search", rt.searchKnowledgePost)
		r.Post("/knowledge/update", rt.updateKnowledge)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

func (rt *Router) rejected(cause string) func() {
	return func() {
		if rt.deps.Metrics != nil {
			rt.deps.Metrics.RecordRejected(serviceName, cause)
		}
	}
}

func (rt *Router) defaultLimit() int {
	if rt.cfg.RAGTopK > 0 {
		return rt.cfg.RAGTopK
	}
	return 5
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("http_request_failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     publicMessage(status, err),
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
