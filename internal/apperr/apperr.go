// Package apperr defines the error categories shared by the diary pipeline,
// the repositories and the HTTP layer.
package apperr

import "errors"

var (
	// ErrValidation marks a request rejected before any external call.
	ErrValidation = errors.New("validation failed")

	// ErrGeneration marks a failed or unusable response from the text-generation service.
	ErrGeneration = errors.New("diary generation failed")

	// ErrPersistence marks a rolled back write transaction.
	ErrPersistence = errors.New("failed to save diary")

	// ErrNotFound is also returned on owner mismatch so that existence is never leaked.
	ErrNotFound = errors.New("not found")

	ErrUnauthorized = errors.New("unauthorized")
)

// Validation wraps a message as a validation failure.
func Validation(msg string) error {
	return &wrapped{msg: msg, kind: ErrValidation}
}

// NotFound wraps a message as a not-found failure.
func NotFound(msg string) error {
	return &wrapped{msg: msg, kind: ErrNotFound}
}

type wrapped struct {
	msg  string
	kind error
}

func (e *wrapped) Error() string { return e.msg }

func (e *wrapped) Unwrap() error { return e.kind }
