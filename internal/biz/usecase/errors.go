package usecase

import (
	"errors"
	"fmt"
)

// ErrKind classifies pipeline failures so callers can pick a policy:
// transport errors are retried (loader backoff, executor attempts),
// config errors fail fast, extraction errors are logged and swallowed.
type ErrKind string

const (
	ErrKindTransport  ErrKind = "transport"
	ErrKindConfig     ErrKind = "config"
	ErrKindExtraction ErrKind = "extraction"
)

// PipelineError is a classified context-pipeline failure
type PipelineError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func pipelineErr(kind ErrKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// IsErrKind reports whether err is a PipelineError of the given kind.
func IsErrKind(err error, kind ErrKind) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == kind
}
