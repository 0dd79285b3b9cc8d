// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/diffeo/go-restkit/restdata"
	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"
)

func jsonHandle() *codec.JsonHandle {
	json := &codec.JsonHandle{}
	json.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return json
}

// expand fills a URI template and returns the result relative to
// base.
func expand(base *url.URL, template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return base.Parse(expanded)
}

// do performs some HTTP action.  If in is non-nil, it is serialized
// as JSON and sent as the body of, for instance, a POST request.  If
// out is non-nil, the response data (if any) is deserialized into
// this object, which must be of pointer type.
func (c *Client) do(method string, u *url.URL, in, out interface{}) (err error) {
	json := jsonHandle()

	// Set up the body as serialized JSON, if there is one
	var body io.Reader
	if in != nil {
		reader, writer := io.Pipe()
		encoder := codec.NewEncoder(writer, json)
		finished := make(chan error)
		go func() {
			err := encoder.Encode(in)
			err = firstError(err, writer.Close())
			finished <- err
		}()
		defer func() {
			err = firstError(err, <-finished)
		}()
		body = reader
	}

	// Create the request and set headers
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return err
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", restdata.JSONMediaType)
	}
	req.Header.Set("Accept", restdata.JSONMediaType)

	// Actually do the request
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}

	// If the response included a body, clean up afterwards
	if resp.Body != nil {
		defer func() {
			err = firstError(err, resp.Body.Close())
		}()
	}

	// Check the response code
	if err = checkHTTPStatus(resp); err != nil {
		return err
	}

	// If there is both a body and a requested output,
	// decode it
	if resp.Body != nil && out != nil && resp.StatusCode != http.StatusNoContent {
		err = codec.NewDecoder(resp.Body, json).Decode(out)
	}

	return err // may be nil
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	if e.Body != "" {
		return e.Response.Status + ": " + e.Body
	}
	return e.Response.Status
}

// HTTPStatus returns the status code of the response.
func (e ErrorHTTP) HTTPStatus() int {
	return e.Response.StatusCode
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	var body []byte
	var err error
	if resp.Body != nil {
		body, err = ioutil.ReadAll(resp.Body)
		if err != nil {
			return err
		}
	}

	// Take a shot at decoding it as a better error
	if strings.HasPrefix(resp.Header.Get("Content-Type"), restdata.JSONMediaType) {
		var errResp restdata.ErrorResponse
		err = codec.NewDecoder(bytes.NewReader(body), jsonHandle()).Decode(&errResp)
		if err == nil && errResp.Message != "" {
			return errResp.ToError(resp.StatusCode)
		}
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
