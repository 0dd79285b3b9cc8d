// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"

	"github.com/diffeo/go-restkit/record"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// Kind is the closed set of failure classes a request can end in.
type Kind int

const (
	// Internal is any unclassified failure.  It is the zero value so
	// that an unrecognized error never looks like a client error.
	Internal Kind = iota
	BadRequest
	Unauthorized
	Forbidden
	NotFound
	MethodNotAllowed
	NotAcceptable
	Conflict
	UnsupportedMediaType
	NotImplemented
	ServiceUnavailable
)

var kindStatus = map[Kind]int{
	Internal:             http.StatusInternalServerError,
	BadRequest:           http.StatusBadRequest,
	Unauthorized:         http.StatusUnauthorized,
	Forbidden:            http.StatusForbidden,
	NotFound:             http.StatusNotFound,
	MethodNotAllowed:     http.StatusMethodNotAllowed,
	NotAcceptable:        http.StatusNotAcceptable,
	Conflict:             http.StatusConflict,
	UnsupportedMediaType: http.StatusUnsupportedMediaType,
	NotImplemented:       http.StatusNotImplemented,
	ServiceUnavailable:   http.StatusServiceUnavailable,
}

var kindNames = map[Kind]string{
	Internal:             "InternalError",
	BadRequest:           "BadRequest",
	Unauthorized:         "Unauthorized",
	Forbidden:            "Forbidden",
	NotFound:             "NotFound",
	MethodNotAllowed:     "MethodNotAllowed",
	NotAcceptable:        "NotAcceptable",
	Conflict:             "Conflict",
	UnsupportedMediaType: "UnsupportedMediaType",
	NotImplemented:       "NotImplemented",
	ServiceUnavailable:   "ServiceUnavailable",
}

// HTTPStatus returns the HTTP status code for a kind.
func (k Kind) HTTPStatus() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified request failure.  Every error the dispatch
// pipeline produces on purpose is one of these; anything else is
// treated as Internal.
type Error struct {
	Kind    Kind
	Message string

	// Fields holds per-field validation messages, if any.
	Fields map[string]string

	// RetryAfter is the number of seconds a throttled client
	// should wait.
	RetryAfter int

	// Err is the underlying cause, if there is one.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// HTTPStatus returns the status code for the error's kind.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new classified error.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, keeping it as the cause.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ErrBadRequest creates a BadRequest (400) error.
func ErrBadRequest(format string, args ...interface{}) *Error {
	return Errorf(BadRequest, format, args...)
}

// ErrUnauthorized creates an Unauthorized (401) error.
func ErrUnauthorized(format string, args ...interface{}) *Error {
	return Errorf(Unauthorized, format, args...)
}

// ErrForbidden creates a Forbidden (403) error.
func ErrForbidden(format string, args ...interface{}) *Error {
	return Errorf(Forbidden, format, args...)
}

// ErrNotFound creates a NotFound (404) error.
func ErrNotFound(format string, args ...interface{}) *Error {
	return Errorf(NotFound, format, args...)
}

// ErrConflict creates a Conflict (409) error.
func ErrConflict(format string, args ...interface{}) *Error {
	return Errorf(Conflict, format, args...)
}

// ErrThrottled creates a ServiceUnavailable (503) error telling the
// client how long to wait.
func ErrThrottled(wait int) *Error {
	return &Error{
		Kind:       ServiceUnavailable,
		Message:    fmt.Sprintf("Throttled, retry after %d seconds.", wait),
		RetryAfter: wait,
	}
}

// Classify converts an arbitrary error into a classified one.  The
// well-known record adapter errors are remapped; errors that already
// report an HTTP status keep it; anything else becomes Internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	var verr *record.ValidationError
	if errors.As(err, &verr) {
		return &Error{Kind: BadRequest, Message: verr.Error(), Fields: verr.Fields, Err: err}
	}
	switch {
	case errors.Is(err, record.ErrNotFound):
		return &Error{Kind: NotFound, Message: "Resource not found.", Err: err}
	case errors.Is(err, record.ErrMultiple):
		return &Error{Kind: Conflict, Message: "Resources conflict.", Err: err}
	}
	var status ErrorStatus
	if errors.As(err, &status) {
		for kind, code := range kindStatus {
			if code == status.HTTPStatus() {
				return &Error{Kind: kind, Err: err}
			}
		}
	}
	return &Error{Kind: Internal, Err: err}
}

// ErrorResponse is the body sent for classified errors.
type ErrorResponse struct {
	Error   string            `codec:"error" json:"error"`
	Message string            `codec:"message" json:"message"`
	Fields  map[string]string `codec:"fields,omitempty" json:"fields,omitempty"`
	Stack   string            `codec:"stack,omitempty" json:"stack,omitempty"`
}

// FromError populates an ErrorResponse from an error value.
func (e *ErrorResponse) FromError(err error) {
	classified := Classify(err)
	e.Error = classified.Kind.String()
	e.Message = classified.Error()
	e.Fields = classified.Fields
}

// Simple returns the response as a plain string-keyed map, ready for
// any emitter.
func (e *ErrorResponse) Simple() map[string]interface{} {
	result := map[string]interface{}{
		"error":   e.Error,
		"message": e.Message,
	}
	if len(e.Fields) > 0 {
		fields := make(map[string]interface{}, len(e.Fields))
		for k, v := range e.Fields {
			fields[k] = v
		}
		result["fields"] = fields
	}
	if e.Stack != "" {
		result["stack"] = e.Stack
	}
	return result
}

// ToError converts a decoded response back into an error.  status is
// the HTTP status it arrived with, used if the kind name is unknown.
func (e *ErrorResponse) ToError(status int) *Error {
	result := &Error{Kind: Internal, Message: e.Message, Fields: e.Fields}
	for kind, name := range kindNames {
		if name == e.Error {
			result.Kind = kind
			return result
		}
	}
	for kind, code := range kindStatus {
		if code == status {
			result.Kind = kind
		}
	}
	return result
}

// FromPanic populates an error response based on a panic.
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = Internal.String()
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}

// FieldSummary renders per-field messages in a stable order.
func FieldSummary(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + fields[name]
	}
	return strings.Join(parts, "; ")
}
