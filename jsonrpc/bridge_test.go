// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package jsonrpc

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/record/memory"
	"github.com/diffeo/go-restkit/record/recordtest"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/restserver"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"
)

var allMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

func newRouter(t *testing.T) http.Handler {
	registry := resource.NewRegistry("1.0", memory.New(recordtest.Schemas()...))
	author := registry.MustRegister(resource.Descriptor{
		Model:          "author",
		AllowedMethods: allMethods,
	})
	registry.MustRegister(resource.Descriptor{
		Model:          "book",
		Parent:         author,
		AllowedMethods: allMethods,
	})
	registry.MustRegister(resource.Descriptor{
		Name: "whoami",
		Handlers: map[string]resource.HandlerFunc{
			resource.GET: func(req *resource.Request) (interface{}, error) {
				return map[string]interface{}{
					"token":  req.Header.Get("X-Token"),
					"remote": req.Identity.Identifier,
				}, nil
			},
		},
	})
	registry.MustRegister(resource.Descriptor{
		Name:           "echo",
		AllowedMethods: []string{"GET", "POST"},
		Handlers: map[string]resource.HandlerFunc{
			resource.GET: func(req *resource.Request) (interface{}, error) {
				return map[string]interface{}{"query": req.URL.RawQuery}, nil
			},
			resource.POST: func(req *resource.Request) (interface{}, error) {
				return map[string]interface{}{
					"data":         req.Data,
					"content_type": req.Header.Get("Content-Type"),
				}, nil
			},
		},
	})
	d := &restserver.Dispatcher{Registry: registry, Clock: clock.NewMock()}
	r := mux.NewRouter()
	restserver.PopulateRouter(r, d)
	Mount(r, &Bridge{Dispatcher: d, Clock: clock.NewMock()})
	return r
}

func call(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/1.0/rpc/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	var out map[string]interface{}
	require.NoError(t, codec.NewDecoderBytes(data, h).Decode(&out), string(data))
	return out
}

func result(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	require.Equal(t, http.StatusOK, resp.Code)
	reply := decode(t, resp.Body.Bytes())
	require.NotContains(t, reply, "error", resp.Body.String())
	out, ok := reply["result"].(map[string]interface{})
	require.True(t, ok, "result in %v", reply)
	return out
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	reply := decode(t, resp.Body.Bytes())
	e, ok := reply["error"].(map[string]interface{})
	require.True(t, ok, "error in %v", reply)
	msg, _ := e["message"].(string)
	return msg
}

func TestCreateAndGet(t *testing.T) {
	h := newRouter(t)
	created := result(t, call(t, h, `{"method": "author.post", "data": {"name": "John"}}`))
	assert.Equal(t, "1", created["pk"])

	created = result(t, call(t, h,
		`{"method": "author-book.post", "params": {"author": 1}, "data": {"name": "Songs"}}`))
	assert.Equal(t, "main.book", created["model"])

	got := result(t, call(t, h, `{"method": "author-book.get", "params": {"author": 1, "book": 1}}`))
	fields, ok := got["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Songs", fields["name"])
	assert.EqualValues(t, 1, fields["author_id"])
}

func TestGetPayload(t *testing.T) {
	h := newRouter(t)
	result(t, call(t, h, `{"method": "author.post", "data": {"name": "John"}}`))
	result(t, call(t, h, `{"method": "author.post", "data": {"name": "Paul"}}`))

	payload := `{"method": "author.get", "data": {"name": "Paul"}}`
	req := httptest.NewRequest("GET", "/1.0/rpc?payload="+url.QueryEscape(payload), nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	page := result(t, resp)
	assert.EqualValues(t, 1, page["count"])
}

func TestErrors(t *testing.T) {
	h := newRouter(t)
	assert.Equal(t, "Wrong method name: author",
		errorMessage(t, call(t, h, `{"method": "author"}`)))
	assert.Equal(t, "Unknown method editor.get",
		errorMessage(t, call(t, h, `{"method": "editor.get"}`)))

	resp := call(t, h, `{"method": "author.get", "params": {"author": 7}}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Resource not found.", errorMessage(t, resp))

	resp = call(t, h, `{"method": "author.post", "data": {}}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, errorMessage(t, resp))
}

func TestMalformed(t *testing.T) {
	h := newRouter(t)
	for _, body := range []string{`{"params": {}}`, `{"method":`, `[1, 2]`} {
		resp := call(t, h, body)
		assert.Equal(t, http.StatusBadRequest, resp.Code, body)
		assert.Equal(t, "Invalid RPC Call.", errorMessage(t, resp), body)
	}

	req := httptest.NewRequest("GET", "/1.0/rpc/", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestJSONP(t *testing.T) {
	h := newRouter(t)
	resp := call(t, h, `{"method": "author.post", "data": {"name": "John"}, "callback": "cb"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, restdata.JSONPMediaType, resp.Header().Get("Content-Type"))
	body := resp.Body.String()
	require.True(t, strings.HasPrefix(body, "cb("), body)
	require.True(t, strings.HasSuffix(body, ")"), body)
	reply := decode(t, []byte(body[3:len(body)-1]))
	assert.Contains(t, reply, "result")
}

func TestHeaders(t *testing.T) {
	h := newRouter(t)
	req := httptest.NewRequest("POST", "/1.0/rpc/",
		strings.NewReader(`{"method": "whoami.get", "headers": {"X-Token": "secret"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.7:1234"
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	got := result(t, resp)
	assert.Equal(t, "secret", got["token"])
	assert.Equal(t, "192.0.2.7", got["remote"])
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope(map[string]interface{}{
		"method":  []byte("author.get"),
		"params":  map[interface{}]interface{}{"author": 1},
		"headers": map[string]interface{}{"X-Count": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "author.get", env.Method)
	assert.Equal(t, map[string]interface{}{"author": 1}, env.Params)
	assert.Equal(t, map[string]string{"X-Count": "3"}, env.Headers)

	_, err = DecodeEnvelope(nil)
	assert.Equal(t, ErrInvalidCall, err)
	_, err = DecodeEnvelope(map[string]interface{}{"data": map[string]interface{}{}})
	assert.Equal(t, ErrInvalidCall, err)
}

func TestSeparator(t *testing.T) {
	registry := resource.NewRegistry("", memory.New(recordtest.Schemas()...))
	registry.MustRegister(resource.Descriptor{Model: "author", AllowedMethods: allMethods})
	b := &Bridge{Dispatcher: &restserver.Dispatcher{Registry: registry}, Separator: "::"}
	reply := b.Call(nil, restdata.RPCRequest{Method: "author::post", Data: map[string]interface{}{"name": "John"}})
	assert.False(t, reply.Failed, reply.Message)
	reply = b.Call(nil, restdata.RPCRequest{Method: "author.post"})
	assert.True(t, reply.Failed)
	assert.Equal(t, "Wrong method name: author.post", reply.Message)
}

func TestCBOR(t *testing.T) {
	h := newRouter(t)
	cbor := &codec.CborHandle{}
	cbor.MapType = reflect.TypeOf(map[string]interface{}(nil))
	var body []byte
	require.NoError(t, codec.NewEncoderBytes(&body, cbor).Encode(map[string]interface{}{
		"method": "author.post",
		"data":   map[string]interface{}{"name": "John"},
	}))
	req := httptest.NewRequest("POST", "/1.0/rpc/", bytes.NewReader(body))
	req.Header.Set("Content-Type", restdata.CBORMediaType)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, restdata.CBORMediaType, resp.Header().Get("Content-Type"))

	var reply map[string]interface{}
	require.NoError(t, codec.NewDecoderBytes(resp.Body.Bytes(), cbor).Decode(&reply))
	result, ok := reply["result"].(map[string]interface{})
	require.True(t, ok, "result in %v", reply)
	assert.EqualValues(t, "1", result["pk"])
}

func TestNestedData(t *testing.T) {
	h := newRouter(t)
	got := result(t, call(t, h,
		`{"method": "echo.post", "data": {"name": "x", "tags": ["a", "b"], "meta": {"color": "red"}}}`))
	assert.Equal(t, restdata.JSONMediaType, got["content_type"])
	data, ok := got["data"].(map[string]interface{})
	require.True(t, ok, "data in %v", got)
	assert.Equal(t, "x", data["name"])
	assert.Equal(t, []interface{}{"a", "b"}, data["tags"])
	assert.Equal(t, map[string]interface{}{"color": "red"}, data["meta"])

	got = result(t, call(t, h, `{"method": "echo.post", "data": {"name": "x", "tags": ["a", "b"]}}`))
	assert.Equal(t, restdata.FormMediaType, got["content_type"])

	got = result(t, call(t, h, `{"method": "echo.get", "data": {"tags": ["a", "b"]}}`))
	assert.Equal(t, "tags=a&tags=b", got["query"])

	resp := call(t, h, `{"method": "echo.get", "data": {"meta": {"color": "red"}}}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Nested data needs a POST, PUT or PATCH method.", errorMessage(t, resp))
}
