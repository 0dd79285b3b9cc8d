// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/record/memory"
	"github.com/diffeo/go-restkit/settings"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T, s settings.Settings) (*Server, http.Handler) {
	store := memory.New(schemas()...)
	users, err := store.Adapter(auth.UserSchema.Name)
	require.NoError(t, err)
	_, err = auth.RecordUsers{Adapter: users, Cost: bcrypt.MinCost}.Add("ali", "sesame")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	server := &Server{Settings: s, Store: store, Version: "1.0", Log: log, Clock: clock.NewMock()}
	handler, err := server.Handler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server, handler
}

func do(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestDemoResources(t *testing.T) {
	_, h := newTestServer(t, settings.Default())

	resp := do(h, "GET", "/1.0/map/", "")
	require.Equal(t, http.StatusOK, resp.Code)
	for _, name := range []string{`"author"`, `"author-book"`, `"author-book-article"`, `"map"`} {
		assert.Contains(t, resp.Body.String(), name)
	}
	assert.NotContains(t, resp.Body.String(), `"token"`)

	resp = do(h, "POST", "/1.0/author/", `{"name": "John"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest("POST", "/1.0/author/", strings.NewReader(`{"name": "John"}`))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("ali", "sesame")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = do(h, "GET", "/1.0/author/1/", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = do(h, "GET", "/1.0/author/1/book/", "", "Accept", "application/xml")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/xml", resp.Header().Get("Content-Type"))

	// articles need credentials even to read
	resp = do(h, "GET", "/1.0/author/1/book/", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = do(h, "GET", "/1.0/author/1/book/1/article/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRPCAndMetrics(t *testing.T) {
	_, h := newTestServer(t, settings.Default())
	resp := do(h, "POST", "/1.0/rpc/", `{"method": "author.get"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"result"`)

	resp = do(h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "diffeo_restkit_requests_total")
}

func TestToken(t *testing.T) {
	s := settings.Default()
	s.JWTSecret = "shh"
	_, h := newTestServer(t, s)

	resp := do(h, "POST", "/1.0/token/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = do(h, "POST", "/1.0/token/?username=ali&password=sesame", "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"token"`)
}

func TestRequestLog(t *testing.T) {
	store := memory.New(schemas()...)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	s := settings.Default()
	s.AccessLog = false
	server := &Server{Settings: s, Store: store, Version: "1.0", RequestLog: log}
	h, err := server.Handler()
	require.NoError(t, err)
	defer server.Close()

	do(h, "GET", "/1.0/author/", "")
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, "/1.0/author/", entry.Data["uri"])
}
