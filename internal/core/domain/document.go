package domain

// Document is a catalog record. It is never mutated after the catalog is loaded.
type Document struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Content  string `json:"content" yaml:"content"`
	Category string `json:"category" yaml:"category"`
	Location string `json:"location" yaml:"location"`
	DocType  string `json:"doc_type" yaml:"doc_type"`
	Source   string `json:"source" yaml:"source"`
}

// Metadata keys stored next to every indexed vector.
const (
	MetaTitle      = "title"
	MetaLocation   = "location"
	MetaCategory   = "category"
	MetaSource     = "source"
	MetaDocType    = "doc_type"
	MetaDocumentID = "document_id"
)

const DefaultDocType = "general"

// KnowledgeCategories lists the categories the builtin catalog is organised by.
var KnowledgeCategories = []string{"weather", "avalanche", "hiking", "skiing", "emergency", "equipment", "location"}

// IndexMetadata returns the metadata stored with the document's vector.
func (d Document) IndexMetadata() map[string]string {
	docType := d.DocType
	if docType == "" {
		docType = DefaultDocType
	}
	return map[string]string{
		MetaTitle:      d.Title,
		MetaLocation:   d.Location,
		MetaCategory:   d.Category,
		MetaSource:     d.Source,
		MetaDocType:    docType,
		MetaDocumentID: d.ID,
	}
}

type IndexedVector struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// IndexMatch is a raw neighbour as reported by a vector index. Smaller distance means more similar.
type IndexMatch struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

type PopulateReport struct {
	Documents int  `json:"documents"`
	Batches   int  `json:"batches"`
	Skipped   bool `json:"skipped"`
}
