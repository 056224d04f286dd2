package model

import (
	"errors"
	"fmt"
)

// ErrEmptyGeneration is returned when the model answered successfully but
// produced no usable document text.
var ErrEmptyGeneration = errors.New("no content received from the model")

// ErrNotFound is returned by a DocumentStore for unknown sessions or revisions.
var ErrNotFound = errors.New("not found")

// MissingInputError reports a required operation field that was empty.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %s", e.Field)
}

// RequestFailedError wraps a failed text-generation call. Message is the
// server-provided error message when the payload carried one.
type RequestFailedError struct {
	StatusCode int // zero for transport failures
	Message    string
	Err        error
}

func (e *RequestFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed: %s", e.Message)
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// MissingField returns the field name if err is a MissingInputError.
func MissingField(err error) (string, bool) {
	var mi *MissingInputError
	if errors.As(err, &mi) {
		return mi.Field, true
	}
	return "", false
}
