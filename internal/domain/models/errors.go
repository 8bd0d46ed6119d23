package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a signal fetch failed.
type FailureKind string

const (
	FailureInvalidDataset   FailureKind = "invalid_dataset"
	FailureTimeout          FailureKind = "timeout"
	FailureConnection       FailureKind = "connection"
	FailureUpstreamStatus   FailureKind = "upstream_status"
	FailureEmptyResponse    FailureKind = "empty_response"
	FailureMalformedPayload FailureKind = "malformed_payload"
)

var (
	// ErrStaleResult marks a tick whose dataset session was replaced while it ran.
	ErrStaleResult = errors.New("poll result is stale: dataset changed")
	// ErrUnsupportedDataset is wrapped by invalid_dataset failures.
	ErrUnsupportedDataset = errors.New("unsupported dataset")
)

// SourceError is a typed signal fetch failure.
type SourceError struct {
	Kind       FailureKind
	Dataset    Dataset
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.Dataset, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Err }

// FailureKindOf extracts the failure kind from err, or "" when err is not a SourceError.
func FailureKindOf(err error) FailureKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
