package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed model call.
type ErrorKind string

const (
	// AuthFailed means the key is missing or was rejected.
	AuthFailed ErrorKind = "AUTH_FAILED"
	// RateLimited means the provider kept answering 429 after every retry.
	RateLimited ErrorKind = "RATE_LIMITED"
	// Unavailable covers network failures, timeouts, 5xx and cancellation.
	Unavailable ErrorKind = "UNAVAILABLE"
	// Malformed means the request was refused as invalid or the reply had no content.
	Malformed ErrorKind = "MALFORMED"
)

var (
	errMissingKey   = errors.New("no API key provided")
	errEmptyChoices = errors.New("response contains no choices")
	errEmptyContent = errors.New("response message is empty")
)

// APIError is returned by every failed Call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *APIError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// classify maps a transport error to an APIError and reports whether the
// attempt may be retried.
func classify(err error) (*APIError, bool) {
	var own *APIError
	if errors.As(err, &own) {
		return own, false
	}

	status := 0
	var oaErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &oaErr):
		status = oaErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	apiErr := &APIError{StatusCode: status, Err: err}
	switch {
	case status == 0:
		apiErr.Kind = Unavailable
		return apiErr, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Kind = AuthFailed
		return apiErr, false
	case status == http.StatusTooManyRequests:
		apiErr.Kind = RateLimited
		return apiErr, true
	case status == http.StatusRequestTimeout || status >= 500:
		apiErr.Kind = Unavailable
		return apiErr, true
	default:
		apiErr.Kind = Malformed
		return apiErr, false
	}
}
