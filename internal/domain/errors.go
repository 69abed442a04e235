package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth signals a missing or rejected credential.
	ErrAuth = errors.New("authentication failed")
	// ErrService signals a network failure, timeout or malformed remote response.
	ErrService = errors.New("remote service error")
	// ErrEmptyInput signals a call with nothing to process.
	ErrEmptyInput = errors.New("empty input")
	// ErrDimensionMismatch signals a query vector whose length differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedModel signals a model identifier outside the configured set.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrMissingCredential signals a required credential that was not supplied.
	ErrMissingCredential = errors.New("missing credential")
	// ErrNoUploads signals an index request without a document or image.
	ErrNoUploads = errors.New("no document or image uploaded")
	// ErrNothingToIndex signals uploads that produced no chunks.
	ErrNothingToIndex = errors.New("uploads produced no indexable content")
	// ErrNoKnowledgeBase signals a question asked before anything was indexed.
	ErrNoKnowledgeBase = errors.New("no knowledge base indexed")
	// ErrUnsupportedDocument signals a document that is neither text nor PDF.
	ErrUnsupportedDocument = errors.New("unsupported document format")
	// ErrUnsupportedImage signals an image that is neither PNG nor JPEG.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrNotPrepared signals an embedder used before it saw the corpus it must be fitted on.
	ErrNotPrepared = errors.New("embedder not prepared")
	// ErrBusy signals an action started while another one is still running in the same session.
	ErrBusy = errors.New("another action is in progress")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the expected and actual lengths.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: index has %d dimensions, query has %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// IsRetryable reports whether err is a transient collaborator failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrService) && !errors.Is(err, ErrAuth)
}
