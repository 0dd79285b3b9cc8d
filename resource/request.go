// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package resource

import (
	"net/http"

	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/media"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/serializer"
)

// Request is the state of one request as it moves through the
// dispatcher.  It is created when dispatch starts and discarded once
// the response is written.
type Request struct {
	*http.Request

	// Verb is the effective HTTP method.
	Verb string

	Resource *Descriptor
	Registry *Registry

	// Identity is the authenticated caller.
	Identity auth.Identity

	// Vars holds the path parameters.
	Vars map[string]string

	// Data is the parsed request body, for verbs that carry one.
	Data map[string]interface{}

	// Resources maps resource names along the path to a
	// *record.Record, or a []*record.Record when several keys
	// were given.
	Resources map[string]interface{}

	// Emitter is the negotiated response codec.
	Emitter media.Emitter

	// Serializer is configured for Resource.
	Serializer *serializer.Serializer
}

// Param returns a path parameter, falling back to the query string.
func (r *Request) Param(name string) string {
	if v, ok := r.Vars[name]; ok && v != "" {
		return v
	}
	if r.Request == nil || r.URL == nil {
		return ""
	}
	return r.URL.Query().Get(name)
}

// Record returns the single resolved record of the named resource,
// or nil.
func (r *Request) Record(name string) *record.Record {
	rec, _ := r.Resources[name].(*record.Record)
	return rec
}

// Records returns the resolved records of the named resource: one,
// several, or none.
func (r *Request) Records(name string) []*record.Record {
	switch v := r.Resources[name].(type) {
	case *record.Record:
		if v != nil {
			return []*record.Record{v}
		}
	case []*record.Record:
		return v
	}
	return nil
}

// Own returns the resolved records of the request's own resource.
func (r *Request) Own() []*record.Record {
	return r.Records(r.Resource.Name)
}

// Response lets a handler control the status and headers.
type Response struct {
	Status  int
	Header  http.Header
	Content interface{}
}

// NewResponse wraps content with a status.
func NewResponse(status int, content interface{}) *Response {
	return &Response{Status: status, Header: make(http.Header), Content: content}
}

// Created wraps content as a 201 response.
func Created(content interface{}) *Response {
	return NewResponse(http.StatusCreated, content)
}
