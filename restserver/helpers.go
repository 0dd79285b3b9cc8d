// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains various HTTP-related helpers.

import (
	"bytes"
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/diffeo/go-restkit/accesslog"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
)

// bufferBody reads the whole request body, up to limit bytes if
// limit is positive, and puts a fresh reader back, so authenticators
// reading form values and the parser both see it.
func bufferBody(req *http.Request, limit int64) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	reader := req.Body
	if limit > 0 {
		reader = http.MaxBytesReader(nil, req.Body, limit)
	}
	body, err := ioutil.ReadAll(reader)
	req.Body.Close()
	req.Body = ioutil.NopCloser(bytes.NewReader(body))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, restdata.ErrBadRequest("Request body exceeds %d bytes.", tooLarge.Limit)
	}
	if err != nil {
		return nil, restdata.ErrBadRequest("Could not read request body: %v", err)
	}
	return body, nil
}

func requestURI(req *http.Request) string {
	if req.RequestURI != "" {
		return req.RequestURI
	}
	if req.URL != nil {
		return req.URL.RequestURI()
	}
	return ""
}

// requestSummary is the body, or the query string for requests
// without one.
func requestSummary(req *http.Request, body []byte) string {
	if len(body) > 0 {
		return accesslog.Truncate(string(body))
	}
	if req.URL != nil {
		return accesslog.Truncate(req.URL.RawQuery)
	}
	return ""
}

// location is the item URL of a record of the request's resource,
// reusing the request's ancestor path parameters.
func location(req *resource.Request, r *record.Record) (string, error) {
	vars := make(map[string]string, len(req.Vars)+1)
	for k, v := range req.Vars {
		vars[k] = v
	}
	vars[req.Resource.Name] = r.PKString()
	return req.Registry.URL(req.Resource, vars)
}

// recordList converts records to a generic list for the serializer
// and paginator.
func recordList(records []*record.Record) []interface{} {
	result := make([]interface{}, len(records))
	for i, r := range records {
		result[i] = r
	}
	return result
}
