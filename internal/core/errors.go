package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a stage failure so operators can distinguish
// configuration mistakes from provider outages.
type ErrorKind string

// Configuration error kinds, surfaced before any stage starts.
// KindUnknownProvider names a provider outside the enumeration;
// KindProviderNotConfigured names a known provider the deployment did not
// wire, such as a selection without its API key.
const (
	KindUnknownChannel        ErrorKind = "UnknownChannel"
	KindUnknownProvider       ErrorKind = "UnknownProvider"
	KindProviderNotConfigured ErrorKind = "ProviderNotConfigured"
	KindMissingVoiceID        ErrorKind = "MissingVoiceId"
)

// Synthesis error kinds.
const (
	KindAuthFailure        ErrorKind = "AuthFailure"
	KindRateLimited        ErrorKind = "RateLimited"
	KindInvalidVoiceID     ErrorKind = "InvalidVoiceId"
	KindTransientNetwork   ErrorKind = "TransientNetworkError"
	KindUnexpectedResponse ErrorKind = "UnexpectedResponse"
)

// Script generation error kinds.
const (
	KindQuotaExceeded    ErrorKind = "QuotaExceeded"
	KindInvalidPrompt    ErrorKind = "InvalidPrompt"
	KindTransientFailure ErrorKind = "TransientFailure"
)

// Asset resolution error kinds.
const (
	KindAssetNotFound    ErrorKind = "NotFound"
	KindAssetFetchFailed ErrorKind = "FetchFailed"
)

// Video composition error kinds.
const (
	KindEncoderUnavailable ErrorKind = "EncoderUnavailable"
	KindInvalidInput       ErrorKind = "InvalidInput"
	KindEncodingFailed     ErrorKind = "EncodingFailed"
)

// KindInternal marks errors that carry no stage classification, such as a
// cancelled context.
const KindInternal ErrorKind = "Internal"

// StageError attaches an ErrorKind to an underlying error. All stage
// collaborators report failures through this type so the orchestrator can
// classify them uniformly.
type StageError struct {
	Kind ErrorKind
	// RetryAfter is the provider-suggested wait before the next attempt.
	// Only meaningful for KindRateLimited; zero when the provider gave no
	// hint.
	RetryAfter time.Duration
	Err        error
}

// NewStageError wraps err with the given kind.
func NewStageError(kind ErrorKind, err error) *StageError {
	return &StageError{
		Kind:       kind,
		RetryAfter: 0,
		Err:        err,
	}
}

// NewRateLimitedError wraps err as KindRateLimited with an optional
// provider-suggested wait.
func NewRateLimitedError(retryAfter time.Duration, err error) *StageError {
	return &StageError{
		Kind:       KindRateLimited,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying error for errors.Is and errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or KindInternal when err carries no
// classification.
func KindOf(err error) ErrorKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}

	return KindInternal
}

// IsRetryable reports whether err names a transient condition that the
// bounded retry policy may attempt again. All other kinds are fatal to the
// stage.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTransientNetwork, KindTransientFailure:
		return true
	default:
		return false
	}
}

// RetryAfterOf returns the provider-suggested wait attached to err, or zero.
func RetryAfterOf(err error) time.Duration {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.RetryAfter
	}

	return 0
}
