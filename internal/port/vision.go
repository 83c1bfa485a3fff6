package port

import (
	"context"

	"github.com/el-gladiador/medflow-backend/internal/domain"
)

// InferResult is the raw outcome of a single successful inference call.
type InferResult struct {
	Text            string
	InferenceTimeMs int64
}

// VisionInference abstracts the remote vision-language inference backend.
type VisionInference interface {
	// Infer sends a preprocessed image and prompt to the backend and
	// returns the model's raw text output. Retry policy is owned by the
	// implementation; the returned error is either unavailability (after
	// retries are exhausted) or a permanent backend failure.
	Infer(ctx context.Context, image []byte, prompt string) (InferResult, error)

	// Health reports backend status best-effort. It never returns an
	// error; an unreachable backend yields a status map saying so.
	Health(ctx context.Context) map[string]interface{}
}

// ImagePreprocessor normalizes a photographed document image for model
// input. It never fails: on any internal error the best available
// intermediate result (or the original bytes) is returned.
type ImagePreprocessor interface {
	Preprocess(image []byte) []byte
}

// ExtractionService runs the full extraction pipeline for one request.
type ExtractionService interface {
	Extract(ctx context.Context, image []byte, docType domain.DocumentType) (*domain.ExtractionResponse, error)
}
