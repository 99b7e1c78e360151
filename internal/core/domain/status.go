package domain

import "time"

// ServiceStatus is the operator view of model providers and the knowledge base.
type ServiceStatus struct {
	Version    string           `json:"version"`
	Generation GenerationStatus `json:"generation"`
	Embedding  EmbeddingStatus  `json:"embedding"`
	Knowledge  KnowledgeStatus  `json:"knowledge_base"`
}

type GenerationStatus struct {
	Available bool   `json:"available"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type EmbeddingStatus struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cache    string `json:"cache"`
}

type KnowledgeStatus struct {
	Backend     string     `json:"backend"`
	Catalog     string     `json:"catalog"`
	Documents   int        `json:"documents"`
	Categories  []string   `json:"categories"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Error       string     `json:"error,omitempty"`
}
