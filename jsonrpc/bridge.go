// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package jsonrpc exposes the resources of a registry as JSON-RPC
// style methods.  A call
//
//     {"method": "book.get", "params": {"author": 1}, "data": {"name": "x"}}
//
// runs a GET against the "book" resource, with "author" as a path
// parameter and "data" as the request body (or query, for GET), and
// answers {"result": ...} or {"error": {"message": ...}}.  A GET may
// carry the call JSON-encoded in the "payload" query parameter.
package jsonrpc

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/media"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/restserver"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// DefaultSeparator splits a method into resource and verb.
const DefaultSeparator = "."

// PayloadParam carries the envelope of a GET call.
const PayloadParam = "payload"

// Bridge routes RPC calls through a Dispatcher.
type Bridge struct {
	Dispatcher *restserver.Dispatcher
	Separator  string
	Log        logrus.FieldLogger
	Clock      clock.Clock
}

// Reply is the outcome of one call.
type Reply struct {
	Result  interface{}
	Message string
	Failed  bool
}

// Simple returns the reply envelope.
func (r Reply) Simple() map[string]interface{} {
	if r.Failed {
		return map[string]interface{}{
			"error": map[string]interface{}{"message": r.Message},
		}
	}
	return map[string]interface{}{"result": r.Result}
}

func (b *Bridge) separator() string {
	if b.Separator == "" {
		return DefaultSeparator
	}
	return b.Separator
}

func (b *Bridge) logger() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

func (b *Bridge) clock() clock.Clock {
	if b.Clock == nil {
		return clock.New()
	}
	return b.Clock
}

// Mount adds the bridge to a router at /<version>/rpc/.
func Mount(r *mux.Router, b *Bridge) {
	path := "/rpc"
	if v := b.Dispatcher.Registry.Version; v != "" {
		path = "/" + v + path
	}
	r.Path(path + "/").Name(b.Dispatcher.Registry.NamePrefix() + "-rpc").Handler(b)
	r.Path(path).Handler(b)
}

func (b *Bridge) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	raw, err := envelope(req)
	var env restdata.RPCRequest
	if err == nil {
		env, err = DecodeEnvelope(raw)
	}
	if err != nil {
		b.write(resp, req, http.StatusBadRequest, "", Reply{Failed: true, Message: ErrInvalidCall.Error()})
		return
	}
	reply := b.Call(req, env)
	b.write(resp, req, http.StatusOK, env.Callback, reply)
}

var envelopeParsers = []media.Parser{media.JSONParser{}, media.FormParser{}, media.CBORParser{}}

// envelope reads the raw call from the payload parameter or the body.
func envelope(req *http.Request) (map[string]interface{}, error) {
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		payload := req.URL.Query().Get(PayloadParam)
		if payload == "" {
			return nil, ErrInvalidCall
		}
		return media.JSONParser{}.Parse(strings.NewReader(payload))
	}
	parser := media.SelectParser(req.Header.Get("Content-Type"), envelopeParsers)
	if parser == nil {
		return nil, ErrInvalidCall
	}
	raw, err := parser.Parse(req.Body)
	if err != nil {
		return nil, err
	}
	// a form post carries the envelope JSON-encoded in one field
	if payload, ok := raw[PayloadParam].(string); ok {
		return media.JSONParser{}.Parse(strings.NewReader(payload))
	}
	return raw, nil
}

// Call runs one call against its resource.  parent supplies the
// headers, remote address and context of the outer request.
func (b *Bridge) Call(parent *http.Request, env restdata.RPCRequest) Reply {
	sep := b.separator()
	i := strings.Index(env.Method, sep)
	if i < 0 {
		return Reply{Failed: true, Message: fmt.Sprintf("Wrong method name: %s", env.Method)}
	}
	name, verb := env.Method[:i], strings.ToUpper(env.Method[i+len(sep):])
	res, ok := b.Dispatcher.Registry.Resource(name)
	if !ok || verb == "" {
		return Reply{Failed: true, Message: fmt.Sprintf("Unknown method %s", env.Method)}
	}

	vars := stringParams(env.Params)
	target, err := b.Dispatcher.Registry.URL(res, vars)
	if err != nil {
		return Reply{Failed: true, Message: err.Error()}
	}
	inner, err := innerRequest(parent, verb, target, env)
	if err != nil {
		return Reply{Failed: true, Message: err.Error()}
	}
	result := b.Dispatcher.Dispatch(inner, res, vars)
	if result.Err != nil {
		b.logger().WithFields(logrus.Fields{
			"method": env.Method,
			"status": result.Status,
		}).Debug("rpc call failed")
		return Reply{Failed: true, Message: result.Err.Error()}
	}
	return Reply{Result: result.Simple}
}

// innerRequest builds the REST request for a call.  The data goes in
// the body of verbs that have one and in the query otherwise.  Flat
// data is form encoded; nested data needs a body and is sent as JSON.
func innerRequest(parent *http.Request, verb, target string, env restdata.RPCRequest) (*http.Request, error) {
	hasBody := verb == http.MethodPost || verb == http.MethodPut || verb == http.MethodPatch
	contentType := restdata.FormMediaType
	var encoded string
	if isNested(env.Data) {
		if !hasBody {
			return nil, restdata.ErrBadRequest("Nested data needs a POST, PUT or PATCH method.")
		}
		var buf bytes.Buffer
		if err := (media.JSONEmitter{}).Emit(&buf, env.Data, media.EmitContext{}); err != nil {
			return nil, restdata.ErrBadRequest("Could not encode data: %v", err)
		}
		encoded, contentType = buf.String(), restdata.JSONMediaType
	} else {
		encoded = formValues(env.Data).Encode()
	}

	ctx := context.Background()
	if parent != nil {
		ctx = parent.Context()
	}
	var body string
	if hasBody {
		body = encoded
	} else if encoded != "" {
		target += "?" + encoded
	}
	inner, err := http.NewRequestWithContext(ctx, verb, target, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	if parent != nil {
		for k, v := range parent.Header {
			inner.Header[k] = append([]string(nil), v...)
		}
		inner.RemoteAddr = parent.RemoteAddr
		inner.Proto = parent.Proto
	}
	for k, v := range env.Headers {
		inner.Header.Set(k, v)
	}
	inner.Header.Set("Content-Type", contentType)
	inner.Header.Set("Accept", restdata.JSONMediaType)
	return inner, nil
}

// isNested reports whether any data value is a mapping, or a list
// holding one or another list.
func isNested(data map[string]interface{}) bool {
	for _, v := range data {
		switch vv := v.(type) {
		case map[string]interface{}, map[interface{}]interface{}:
			return true
		case []interface{}:
			for _, item := range vv {
				switch item.(type) {
				case map[string]interface{}, map[interface{}]interface{}, []interface{}:
					return true
				}
			}
		}
	}
	return false
}

// formValues encodes flat data; lists become repeated keys.
func formValues(data map[string]interface{}) url.Values {
	values := make(url.Values)
	for k, v := range data {
		switch list := v.(type) {
		case []interface{}:
			for _, item := range list {
				values.Add(k, fmt.Sprint(item))
			}
		case nil:
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return values
}

// write sends the reply, as JSONP if a callback was named in the
// envelope or the query, or as CBOR to a CBOR call.
func (b *Bridge) write(resp http.ResponseWriter, req *http.Request, status int, callback string, reply Reply) {
	if callback == "" {
		callback = req.URL.Query().Get(media.DefaultCallback)
	}
	if callback == "" {
		callback = req.URL.Query().Get("jsonp")
	}
	var emitter media.Emitter = media.JSONEmitter{}
	switch {
	case callback != "":
		emitter = media.JSONPEmitter{}
	case strings.HasPrefix(req.Header.Get("Content-Type"), restdata.CBORMediaType):
		emitter = media.CBOREmitter{}
	}
	ctx := media.EmitContext{
		Success:  !reply.Failed,
		Version:  b.Dispatcher.Registry.Version,
		Time:     b.clock().Now(),
		Callback: callback,
	}
	var buf bytes.Buffer
	if err := emitter.Emit(&buf, reply.Simple(), ctx); err != nil {
		b.logger().WithError(err).Error("could not encode rpc reply")
		resp.Header().Set("Content-Type", restdata.TextMediaType)
		resp.WriteHeader(http.StatusInternalServerError)
		_, _ = resp.Write([]byte(err.Error()))
		return
	}
	resp.Header().Set("Content-Type", emitter.MediaType())
	resp.WriteHeader(status)
	if _, err := resp.Write(buf.Bytes()); err != nil {
		b.logger().WithError(err).Warn("could not write rpc reply")
	}
}
