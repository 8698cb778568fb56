package services

import (
	"errors"
	"fmt"

	"github.com/desertthunder/melodyfetch/internal/shared"
)

// TransportError is a failure to complete the exchange: network error, timeout, or a body that is not the expected JSON.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %v", shared.ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == shared.ErrTransport }

// HTTPError is a non-2xx HTTP status from the API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", shared.ErrHTTPStatus, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", shared.ErrHTTPStatus, e.Status, e.Body)
}

func (e *HTTPError) Is(target error) bool { return target == shared.ErrHTTPStatus }

// ApplicationError is a well-formed payload whose code is not the success code.
//
// NotFound marks a success envelope that carried no track; Code is then the envelope's own code
// and is left out of the error text.
type ApplicationError struct {
	Code      int
	Message   string
	NotFound  bool
	temporary bool
}

func (e *ApplicationError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("%v: %s", shared.ErrAPIRequest, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%v: code %d", shared.ErrAPIRequest, e.Code)
	}
	return fmt.Sprintf("%v: code %d: %s", shared.ErrAPIRequest, e.Code, e.Message)
}

func (e *ApplicationError) Is(target error) bool {
	return target == shared.ErrAPIRequest || (e.NotFound && target == shared.ErrTrackNotFound)
}

// Temporary reports whether the upstream flagged itself as temporarily unavailable.
func (e *ApplicationError) Temporary() bool { return e.temporary }

// ExhaustedRetriesError is returned when every attempt of an operation failed. Last is the final attempt's error.
type ExhaustedRetriesError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Op, shared.ErrRetriesExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

func (e *ExhaustedRetriesError) Is(target error) bool { return target == shared.ErrRetriesExhausted }

// Message returns the text shown to the user: the upstream message for application failures, else the error text.
func Message(err error) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("HTTP %d", httpErr.Status)
	}
	if errors.Is(err, shared.ErrTransport) {
		return "network error"
	}
	return err.Error()
}
