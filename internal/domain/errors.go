package domain

import "errors"

var (
	ErrEmptyImage          = errors.New("empty image data")
	ErrMissingDocumentType = errors.New("document_type field is required")
)
