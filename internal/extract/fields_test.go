package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-gladiador/medflow-backend/internal/domain"
	"github.com/el-gladiador/medflow-backend/internal/extract"
	"github.com/el-gladiador/medflow-backend/internal/prompt"
)

func personalausweisSpec(t *testing.T) *prompt.Spec {
	t.Helper()
	spec, ok := prompt.NewRegistry().Lookup(domain.DocumentTypePersonalausweis)
	require.True(t, ok)
	return spec
}

func TestBuildFields_DropsBlankAndNonString(t *testing.T) {
	obj, ok := newParser().TryExtractObject(`{"first_name": "Max", "last_name": "", "empty_field": "   ", "count": 42, "valid": true}`)
	require.True(t, ok)

	fields := extract.BuildFields(obj, domain.DocumentTypePersonalausweis, personalausweisSpec(t))

	require.Len(t, fields, 1)
	assert.Equal(t, domain.ExtractionField{
		Key:        "first_name",
		Value:      "Max",
		Confidence: 0.85,
		Source:     domain.DocumentTypePersonalausweis,
	}, fields[0])
}

func TestBuildFields_TrimsValues(t *testing.T) {
	obj, ok := newParser().TryExtractObject(`{"first_name": "  Max  "}`)
	require.True(t, ok)

	fields := extract.BuildFields(obj, domain.DocumentTypePersonalausweis, personalausweisSpec(t))

	require.Len(t, fields, 1)
	assert.Equal(t, "Max", fields[0].Value)
}

func TestBuildFields_ConfidenceBoostedForExpectedKeys(t *testing.T) {
	obj, ok := newParser().TryExtractObject(`{"first_name": "Max", "unsolicited_note": "smudged"}`)
	require.True(t, ok)

	fields := extract.BuildFields(obj, domain.DocumentTypePersonalausweis, personalausweisSpec(t))

	require.Len(t, fields, 2)
	byKey := map[string]float64{}
	for _, f := range fields {
		byKey[f.Key] = f.Confidence
	}
	assert.Equal(t, 0.85, byKey["first_name"])
	assert.Equal(t, 0.75, byKey["unsolicited_note"])
}

func TestBuildFields_OrderFollowsParsedObject(t *testing.T) {
	obj, ok := newParser().TryExtractObject(`{"last_name": "Mustermann", "first_name": "Max", "city": "Berlin"}`)
	require.True(t, ok)

	fields := extract.BuildFields(obj, domain.DocumentTypePersonalausweis, personalausweisSpec(t))

	require.Len(t, fields, 3)
	assert.Equal(t, "last_name", fields[0].Key)
	assert.Equal(t, "first_name", fields[1].Key)
	assert.Equal(t, "city", fields[2].Key)
}

func TestBuildFields_NilObject(t *testing.T) {
	assert.Empty(t, extract.BuildFields(nil, domain.DocumentTypePersonalausweis, personalausweisSpec(t)))
}
