package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-gladiador/medflow-backend/internal/domain"
	"github.com/el-gladiador/medflow-backend/internal/handler"
)

type stubService struct {
	resp     *domain.ExtractionResponse
	err      error
	gotImage []byte
	gotType  domain.DocumentType
}

func (s *stubService) Extract(_ context.Context, image []byte, docType domain.DocumentType) (*domain.ExtractionResponse, error) {
	s.gotImage = image
	s.gotType = docType
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newTestRouter(h *handler.ExtractHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/extract", h.Extract)
	return r
}

func multipartBody(t *testing.T, fileContents []byte, docType string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if fileContents != nil {
		part, err := writer.CreateFormFile("file", "document.jpg")
		require.NoError(t, err)
		_, err = part.Write(fileContents)
		require.NoError(t, err)
	}
	if docType != "" {
		require.NoError(t, writer.WriteField("document_type", docType))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestExtract_Success(t *testing.T) {
	svc := &stubService{resp: &domain.ExtractionResponse{
		DocumentType: domain.DocumentTypePersonalausweis,
		Fields: []domain.ExtractionField{
			{Key: "first_name", Value: "Max", Confidence: 0.85, Source: domain.DocumentTypePersonalausweis},
		},
		Warnings:         []string{},
		ProcessingTimeMs: 1500,
	}}
	router := newTestRouter(handler.NewExtractHandler(svc, zerolog.Nop()))

	body, contentType := multipartBody(t, []byte("fake image bytes"), "personalausweis")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("fake image bytes"), svc.gotImage)
	assert.Equal(t, domain.DocumentTypePersonalausweis, svc.gotType)

	var resp domain.ExtractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "Max", resp.Fields[0].Value)
	assert.Equal(t, int64(1500), resp.ProcessingTimeMs)
}

func TestExtract_MissingFile(t *testing.T) {
	router := newTestRouter(handler.NewExtractHandler(&stubService{}, zerolog.Nop()))

	body, contentType := multipartBody(t, nil, "personalausweis")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file field is required")
}

func TestExtract_EmptyFile(t *testing.T) {
	router := newTestRouter(handler.NewExtractHandler(&stubService{}, zerolog.Nop()))

	body, contentType := multipartBody(t, []byte{}, "personalausweis")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Empty file uploaded")
}

func TestExtract_MissingDocumentType(t *testing.T) {
	router := newTestRouter(handler.NewExtractHandler(&stubService{}, zerolog.Nop()))

	body, contentType := multipartBody(t, []byte("image"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "document_type")
}

func TestExtract_BackendNotConfigured(t *testing.T) {
	router := newTestRouter(handler.NewExtractHandler(nil, zerolog.Nop()))

	body, contentType := multipartBody(t, []byte("image"), "personalausweis")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not available")
}

func TestHealth_WithoutBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", handler.NewHealthHandler(nil).Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, false, resp["backend_available"])
}
