package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/el-gladiador/medflow-backend/internal/domain"
	"github.com/el-gladiador/medflow-backend/internal/port"
)

// ExtractHandler handles document extraction requests. A nil service
// means no inference backend is configured and extraction is disabled.
type ExtractHandler struct {
	svc port.ExtractionService
	log zerolog.Logger
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(svc port.ExtractionService, log zerolog.Logger) *ExtractHandler {
	return &ExtractHandler{svc: svc, log: log.With().Str("component", "handler").Logger()}
}

// Extract handles POST /api/v1/extract: multipart form with a document
// image under "file" and a "document_type" field. The response is an
// ExtractionResponse; pipeline failures surface as warnings inside it,
// never as HTTP errors.
func (h *ExtractHandler) Extract(c *gin.Context) {
	if h.svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"detail": "AI document extraction is not available - no inference backend configured",
		})
		return
	}

	docType := c.PostForm("document_type")
	if docType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": domain.ErrMissingDocumentType.Error()})
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file field is required"})
		return
	}
	defer func() { _ = file.Close() }()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "could not read uploaded file"})
		return
	}
	if len(imageBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Empty file uploaded"})
		return
	}

	// Log byte counts only, never image content. Images are processed
	// in memory and not retained.
	h.log.Info().
		Str("document_type", docType).
		Int("size_bytes", len(imageBytes)).
		Msg("processing extraction")

	resp, err := h.svc.Extract(c.Request.Context(), imageBytes, domain.DocumentType(docType))
	if err != nil {
		if errors.Is(err, domain.ErrEmptyImage) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Empty file uploaded"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "extraction failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
