package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/el-gladiador/medflow-backend/internal/domain"
	"github.com/el-gladiador/medflow-backend/internal/inference"
	"github.com/el-gladiador/medflow-backend/internal/port"
	"github.com/el-gladiador/medflow-backend/internal/prompt"
)

// Service composes the per-request pipeline: resolve the prompt for the
// requested document type, preprocess the image, call the inference
// backend, and parse the model output into fields. Every outcome —
// success or any failure past the input precondition — is a well-formed
// response; inference errors are caught exactly once, here.
type Service struct {
	registry     *prompt.Registry
	preprocessor port.ImagePreprocessor
	client       port.VisionInference
	parser       *Parser
	log          zerolog.Logger
}

// NewService creates an extraction service.
func NewService(registry *prompt.Registry, preprocessor port.ImagePreprocessor, client port.VisionInference, log zerolog.Logger) *Service {
	return &Service{
		registry:     registry,
		preprocessor: preprocessor,
		client:       client,
		parser:       NewParser(log),
		log:          log.With().Str("component", "extract").Logger(),
	}
}

// Extract runs the pipeline for one document image. The only error it
// can return is domain.ErrEmptyImage for an empty input; all pipeline
// failures are reported through the response's warnings instead.
func (s *Service) Extract(ctx context.Context, image []byte, docType domain.DocumentType) (*domain.ExtractionResponse, error) {
	if len(image) == 0 {
		return nil, domain.ErrEmptyImage
	}

	start := time.Now()

	spec, ok := s.registry.Lookup(docType)
	if !ok {
		return &domain.ExtractionResponse{
			DocumentType:     docType,
			Fields:           []domain.ExtractionField{},
			Warnings:         []string{fmt.Sprintf("No prompt defined for document type: %s", docType)},
			ProcessingTimeMs: 0,
		}, nil
	}

	preprocessed := s.preprocessor.Preprocess(image)
	s.log.Info().
		Str("document_type", string(docType)).
		Int("original_bytes", len(image)).
		Int("preprocessed_bytes", len(preprocessed)).
		Msg("image preprocessed")

	result, err := s.client.Infer(ctx, preprocessed, spec.Prompt)
	if err != nil {
		return s.failureResponse(docType, err, start), nil
	}
	s.log.Info().Int64("inference_ms", result.InferenceTimeMs).Msg("inference completed")

	var fields []domain.ExtractionField
	if obj, ok := s.parser.TryExtractObject(result.Text); ok {
		fields = BuildFields(obj, docType, spec)
	}

	warnings := []string{}
	if len(fields) == 0 {
		fields = []domain.ExtractionField{}
		warnings = append(warnings, "Could not extract any fields from the image. The image may be unclear or the document type may not match.")
	}

	return &domain.ExtractionResponse{
		DocumentType:     docType,
		Fields:           fields,
		Warnings:         warnings,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// failureResponse converts a classified inference error into a terminal
// response carrying a single warning and the elapsed time so far.
func (s *Service) failureResponse(docType domain.DocumentType, err error, start time.Time) *domain.ExtractionResponse {
	var warning string

	var unavailable *inference.UnavailableError
	var backend *inference.BackendError
	switch {
	case errors.As(err, &unavailable):
		s.log.Error().Err(err).Msg("inference backend unavailable after retries")
		warning = fmt.Sprintf("Inference service unavailable: %s", unavailable.Detail)
	case errors.As(err, &backend):
		s.log.Error().Err(err).Msg("inference backend error")
		warning = fmt.Sprintf("Inference failed: %s", backend.Detail)
	default:
		s.log.Error().Err(err).Msg("inference call failed")
		warning = fmt.Sprintf("Inference failed: %v", err)
	}

	return &domain.ExtractionResponse{
		DocumentType:     docType,
		Fields:           []domain.ExtractionField{},
		Warnings:         []string{warning},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}
