package extract

import (
	"strings"

	"github.com/el-gladiador/medflow-backend/internal/domain"
	"github.com/el-gladiador/medflow-backend/internal/prompt"
)

const (
	baseConfidence    = 0.75
	boostedConfidence = 0.85
)

// BuildFields converts a parsed object into extraction fields. Values
// that are not strings, or are blank after trimming, are dropped. Keys
// belonging to the document type's expected vocabulary get the boosted
// confidence. Output order follows the parsed object's key order.
func BuildFields(obj *Object, docType domain.DocumentType, spec *prompt.Spec) []domain.ExtractionField {
	if obj == nil {
		return nil
	}

	fields := make([]domain.ExtractionField, 0, obj.Len())
	for _, key := range obj.Keys() {
		raw, ok := obj.Value(key).(string)
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		confidence := baseConfidence
		if spec != nil && spec.Expects(key) {
			confidence = boostedConfidence
		}

		fields = append(fields, domain.ExtractionField{
			Key:        key,
			Value:      value,
			Confidence: confidence,
			Source:     docType,
		})
	}
	return fields
}
