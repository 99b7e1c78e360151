package httpadapter

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status            string     `json:"status"`
	ModelLoaded       bool       `json:"model_loaded"`
	KnowledgeBaseSize int        `json:"knowledge_base_size"`
	Version           string     `json:"version"`
	Uptime            string     `json:"uptime"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	status := rt.deps.Status.Status(r.Context())

	state := "healthy"
	if status.Knowledge.Documents == 0 || status.Knowledge.Error != "" {
		state = "initializing"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            state,
		ModelLoaded:       status.Generation.Available,
		KnowledgeBaseSize: status.Knowledge.Documents,
		Version:           status.Version,
		Uptime:            time.Since(rt.startedAt).Truncate(time.Second).String(),
		LastUpdate:        status.Knowledge.LastUpdated,
	})
}

func (rt *Router) modelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.deps.Status.Status(r.Context()))
}
