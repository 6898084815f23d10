package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed completion call. The client never retries, so the kind
// only shows up in logs, metrics and events.
type ErrorKind string

const (
	// KindTransient covers network failures, rate limits and 5xx responses.
	KindTransient ErrorKind = "transient"
	// KindFatal covers bad credentials, rejected requests and unreadable replies.
	KindFatal ErrorKind = "fatal"
)

// GenerationError is returned by Client.Complete for every failed call.
type GenerationError struct {
	Kind ErrorKind
	// StatusCode is the upstream HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a transient generation failure.
func NewTransientError(err error) error {
	return &GenerationError{Kind: KindTransient, Err: err}
}

// NewFatalError wraps err as a fatal generation failure.
func NewFatalError(err error) error {
	return &GenerationError{Kind: KindFatal, Err: err}
}

// statusError builds the error for a non-200 reply. 429 and 5xx are transient.
func statusError(statusCode int, body []byte) error {
	text := string(body)
	if len(text) > 200 {
		text = text[:200] + "..."
	}

	kind := KindFatal
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		kind = KindTransient
	}
	return &GenerationError{
		Kind:       kind,
		StatusCode: statusCode,
		Err:        fmt.Errorf("generator API error (status %d): %s", statusCode, text),
	}
}

// KindOf returns the kind of a generation failure, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var gen *GenerationError
	if errors.As(err, &gen) {
		return gen.Kind
	}
	return ""
}

// IsTransient reports whether err is a transient generation failure.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsFatal reports whether err is a fatal generation failure.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatal
}
