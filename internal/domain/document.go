package domain

// DocumentType identifies the kind of identity document being processed.
type DocumentType string

const (
	DocumentTypePersonalausweis DocumentType = "personalausweis"
	DocumentTypeReisepass       DocumentType = "reisepass"
	DocumentTypeFuehrerschein   DocumentType = "fuehrerschein"
)

// ExtractionField is a single extracted key/value pair with a confidence
// score. Source is the document type the field was extracted for.
type ExtractionField struct {
	Key        string       `json:"key"`
	Value      string       `json:"value"`
	Confidence float64      `json:"confidence"`
	Source     DocumentType `json:"source"`
}

// ExtractionResponse is the fully assembled result of one extraction
// request. Warnings is non-empty exactly when Fields is empty due to a
// detected failure (unknown type, backend unavailable, backend error, or
// nothing parseable in the model output).
type ExtractionResponse struct {
	DocumentType     DocumentType      `json:"document_type"`
	Fields           []ExtractionField `json:"fields"`
	Warnings         []string          `json:"warnings"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}
