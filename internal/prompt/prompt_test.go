package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-gladiador/medflow-backend/internal/domain"
	"github.com/el-gladiador/medflow-backend/internal/prompt"
)

func TestRegistry_CoversSupportedDocumentTypes(t *testing.T) {
	registry := prompt.NewRegistry()

	for _, docType := range []domain.DocumentType{
		domain.DocumentTypePersonalausweis,
		domain.DocumentTypeReisepass,
		domain.DocumentTypeFuehrerschein,
	} {
		spec, ok := registry.Lookup(docType)
		require.True(t, ok, "missing spec for %s", docType)
		assert.NotEmpty(t, spec.Prompt)
		assert.NotEmpty(t, spec.ExpectedKeys)
		assert.True(t, spec.Expects("first_name"))
		assert.True(t, spec.Expects("document_number"))
		assert.False(t, spec.Expects("unrelated_key"))
	}

	assert.Len(t, registry.Types(), 3)
}

func TestRegistry_UnknownTypeIsNotAnError(t *testing.T) {
	_, ok := prompt.NewRegistry().Lookup("lebenslauf")
	assert.False(t, ok)
}

func TestRegistry_AddressKeysOnlyOnPersonalausweis(t *testing.T) {
	registry := prompt.NewRegistry()

	ausweis, _ := registry.Lookup(domain.DocumentTypePersonalausweis)
	pass, _ := registry.Lookup(domain.DocumentTypeReisepass)

	assert.True(t, ausweis.Expects("street"))
	assert.True(t, ausweis.Expects("postal_code"))
	assert.False(t, pass.Expects("street"))
}

func TestRegistry_LicenseClassesOnFuehrerschein(t *testing.T) {
	spec, _ := prompt.NewRegistry().Lookup(domain.DocumentTypeFuehrerschein)

	assert.True(t, spec.Expects("license_classes"))
	assert.False(t, spec.Expects("nationality"))
}
