package domain

type Source struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	DocumentType   string  `json:"document_type"`
	Location       string  `json:"location,omitempty"`
}

type AnswerBundle struct {
	Message      string         `json:"message"`
	Sources      []Source       `json:"sources"`
	Confidence   float64        `json:"confidence"`
	ResponseTime float64        `json:"response_time"`
	Retrieved    []SearchResult `json:"retrieved_documents"`
	Metadata     map[string]any `json:"generation_metadata"`
}

// WeatherContext is optional caller-supplied conditions forwarded to the generation prompt.
type WeatherContext struct {
	Condition   string   `json:"condition,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type QueryRequest struct {
	Query    string
	Filter   RetrievalFilter
	Limit    int
	Location string
	Weather  *WeatherContext
}

// GenerationRequest is what a generation provider receives to write an answer.
type GenerationRequest struct {
	Query    string
	Location string
	Weather  *WeatherContext
	Results  []SearchResult
}

// Fallback reasons recorded in AnswerBundle metadata and metrics.
const (
	FallbackRetrievalUnavailable  = "retrieval_unavailable"
	FallbackGenerationUnavailable = "generation_unavailable"
	FallbackGenerationTimeout     = "generation_timeout"
	FallbackGenerationFailed      = "generation_failed"
	FallbackInternalError         = "internal_error"
)
