package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedMediaType indicates the ingest type is not supported
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrDimensionMismatch indicates a vector's dimension does not match the index
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexLocked indicates the vector index writer lock could not be acquired
	ErrIndexLocked = errors.New("vector index is locked by another writer")

	// ErrEmptyTranscript indicates transcription produced no usable text
	ErrEmptyTranscript = errors.New("transcript is empty")

	// ErrServiceUnavailable indicates an external AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
