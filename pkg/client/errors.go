package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Remote error codes embedded in bad-request payloads.
const (
	codeAlreadyExists  = "TCMP_35004"
	codeMissingField   = "TCMP_1002"
	codeNotFound       = "TCMP_09007"
	codeReferredBy     = "TCMP_35001"
	codeRemoveFailed   = "TCMP_35243"
	codeCancelRejected = "TCMP_60255"
)

// errorFieldKey marks the per-item error message in bad-request payloads.
const errorFieldKey = "_ERROR_"

// ErrNotModified is returned when the remote service reports 304 on a
// write; the resource already matches the submitted content.
var ErrNotModified = errors.New("resource not modified")

// ConnectionError indicates the request never produced a response: timeout,
// DNS, TLS, or socket failure, after transport-level retries were
// exhausted.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseError indicates the remote service answered with an unexpected
// status or payload shape.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected response (%d): %s", e.Status, e.Message)
}

// RequestError is a 400-class response with a decoded error payload.
type RequestError struct {
	Status int
	Data   map[string]any
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("bad request (%d): %v", e.Status, e.Data)
}

// AlreadyExistsError indicates a create collided with an existing resource
// holding the same identifying key.
type AlreadyExistsError struct {
	Message string
}

func (e *AlreadyExistsError) Error() string { return e.Message }

// MissingFieldError indicates the remote service rejected a write because
// one or more required fields were absent.
type MissingFieldError struct {
	Fields map[string]string
}

func (e *MissingFieldError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "missing required field(s): " + strings.Join(names, ", ")
}

// itemErrors extracts the error messages from one bad-request payload item.
func itemErrors(item map[string]any) (message string, fieldErrors map[string]string) {
	fieldErrors = make(map[string]string)
	for key, value := range item {
		text, ok := value.(string)
		if !ok {
			continue
		}
		if key == errorFieldKey {
			message = text
			continue
		}
		if strings.Contains(text, "TCMP_") {
			fieldErrors[key] = text
		}
	}
	return message, fieldErrors
}
