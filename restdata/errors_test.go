// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/diffeo/go-restkit/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusError is an error from some other package that knows its HTTP
// status.
type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) HTTPStatus() int { return int(e) }

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	verr := &record.ValidationError{}
	verr.Add("name", "This field is required.")

	forbidden := ErrForbidden("no")
	for _, test := range []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{"classified", forbidden, Forbidden, "no"},
		{"wrapped", fmt.Errorf("load: %w", forbidden), Forbidden, "no"},
		{"validation", verr, BadRequest, "Invalid name: This field is required."},
		{"not found", record.ErrNotFound, NotFound, "Resource not found."},
		{"wrapped not found", fmt.Errorf("get: %w", record.ErrNotFound), NotFound, "Resource not found."},
		{"multiple", record.ErrMultiple, Conflict, "Resources conflict."},
		{"foreign 415", statusError(http.StatusUnsupportedMediaType), UnsupportedMediaType, "status 415"},
		{"foreign 404", statusError(http.StatusNotFound), NotFound, "status 404"},
		{"foreign 418", statusError(http.StatusTeapot), Internal, "status 418"},
		{"plain", errors.New("boom"), Internal, "boom"},
	} {
		t.Run(test.name, func(t *testing.T) {
			classified := Classify(test.err)
			require.NotNil(t, classified)
			assert.Equal(t, test.kind, classified.Kind)
			assert.Equal(t, test.message, classified.Error())
			assert.Equal(t, test.kind.HTTPStatus(), classified.HTTPStatus())
		})
	}

	classified := Classify(verr)
	assert.Equal(t, map[string]string{"name": "This field is required."}, classified.Fields)
	assert.True(t, errors.Is(classified, verr))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "InternalError", Internal.String())
	assert.Equal(t, "UnsupportedMediaType", UnsupportedMediaType.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.Equal(t, http.StatusInternalServerError, Kind(99).HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, ServiceUnavailable.HTTPStatus())
}

func TestToError(t *testing.T) {
	for _, test := range []struct {
		name   string
		resp   ErrorResponse
		status int
		kind   Kind
	}{
		{"by name", ErrorResponse{Error: "Conflict", Message: "dup"}, http.StatusBadRequest, Conflict},
		{"by status", ErrorResponse{Error: "Teapot", Message: "dup"}, http.StatusNotFound, NotFound},
		{"unknown", ErrorResponse{Error: "Teapot", Message: "dup"}, http.StatusTeapot, Internal},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.resp.ToError(test.status)
			assert.Equal(t, test.kind, err.Kind)
			assert.Equal(t, "dup", err.Error())
		})
	}

	var resp ErrorResponse
	resp.FromError(ErrBadRequest("Invalid %s", "data"))
	resp.Fields = map[string]string{"name": "missing"}
	back := resp.ToError(http.StatusBadRequest)
	assert.Equal(t, BadRequest, back.Kind)
	assert.Equal(t, "Invalid data", back.Message)
	assert.Equal(t, map[string]string{"name": "missing"}, back.Fields)
	assert.Equal(t, map[string]interface{}{
		"error":   "BadRequest",
		"message": "Invalid data",
		"fields":  map[string]interface{}{"name": "missing"},
	}, resp.Simple())
}

func TestThrottledError(t *testing.T) {
	err := ErrThrottled(7)
	assert.Equal(t, ServiceUnavailable, err.Kind)
	assert.Equal(t, 7, err.RetryAfter)
	assert.Equal(t, "Throttled, retry after 7 seconds.", err.Error())
}
