// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package media holds the wire codecs: emitters, which write a simple
// structure (see package serializer) as a response body, and parsers,
// which read a request body into a string-keyed map.  It also chooses
// among a resource's codecs from the Accept and Content-Type headers.
package media

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/ugorji/go/codec"
)

// EmitContext carries per-response details some emitters need.
type EmitContext struct {
	// Success is false when the body describes an error.
	Success bool

	// Version is the API version label.
	Version string

	// Callback is the JSONP function name.
	Callback string

	// Time is the response timestamp.
	Time time.Time
}

// Emitter writes a simple structure in one media type.
type Emitter interface {
	MediaType() string
	Emit(w io.Writer, simple interface{}, ctx EmitContext) error
}

// Parser reads a request body in one media type.
type Parser interface {
	MediaType() string
	Parse(r io.Reader) (map[string]interface{}, error)
}

var mapType = reflect.TypeOf(map[string]interface{}(nil))

// newJSONHandle returns the JSON codec configuration shared by the
// JSON emitters and parser.  Maps are written with sorted keys and
// decoded as map[string]interface{}; integers decode as int64.
func newJSONHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.Canonical = true
	h.MapType = mapType
	h.SignedInteger = true
	return h
}

// newCBORHandle returns the CBOR codec configuration.
func newCBORHandle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	h.MapType = mapType
	h.SignedInteger = true
	return h
}

// normalize converts decoded values so that every map in the tree is
// a map[string]interface{}.
func normalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, item := range vv {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case map[string]interface{}:
		for k, item := range vv {
			vv[k] = normalize(item)
		}
		return vv
	case []interface{}:
		for i, item := range vv {
			vv[i] = normalize(item)
		}
		return vv
	case []byte:
		return string(vv)
	}
	return v
}
