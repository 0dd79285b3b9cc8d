// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the request pipeline.  Dispatch never returns an
// error: every failure, down to a panic in a handler, becomes a
// rendered Result.  Content negotiation runs before anything else so
// that errors from every later step go out in the client's format.

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/accesslog"
	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/media"
	"github.com/diffeo/go-restkit/paginator"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/sirupsen/logrus"
)

// DefaultMailErrors lists the statuses passed to the Notifier when
// Dispatcher.MailErrors is nil.
var DefaultMailErrors = []int{http.StatusInternalServerError}

// Dispatcher runs requests against the resources of a Registry.
type Dispatcher struct {
	Registry *resource.Registry

	// Log receives internal errors.
	Log logrus.FieldLogger

	// AccessLog, if set, receives an entry per request to a
	// resource without DisableLog.
	AccessLog accesslog.Sink

	// Notifier, if set, is told about responses whose status is
	// in MailErrors.
	Notifier   Notifier
	MailErrors []int

	Clock clock.Clock
}

// Result is a rendered response.
type Result struct {
	Status int
	Header http.Header
	Body   []byte

	// Simple is the structure Body was emitted from.  It is nil
	// for empty responses and raw internal errors.
	Simple interface{}

	// Err is set if the request failed.
	Err *restdata.Error

	// Identity is the caller, as far as it was established.
	Identity auth.Identity
}

// Write sends the result.
func (r *Result) Write(w http.ResponseWriter) error {
	for k, v := range r.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(r.Status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

func (d *Dispatcher) clock() clock.Clock {
	if d.Clock == nil {
		return clock.New()
	}
	return d.Clock
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// Dispatch runs one request against res.  vars holds the path
// parameters.
func (d *Dispatcher) Dispatch(httpReq *http.Request, res *resource.Descriptor, vars map[string]string) *Result {
	start := d.clock().Now()
	if vars == nil {
		vars = make(map[string]string)
	}
	req := &resource.Request{
		Request:    httpReq,
		Verb:       strings.ToUpper(httpReq.Method),
		Resource:   res,
		Registry:   d.Registry,
		Vars:       vars,
		Resources:  make(map[string]interface{}),
		Serializer: res.NewSerializer(d.Registry.Store),
	}
	// until authentication succeeds the caller is known by address
	req.Identity, _ = auth.Anonymous{}.Authenticate(httpReq)

	var value interface{}
	emitter, err := negotiate(req)
	req.Emitter = emitter
	body, bodyErr := bufferBody(httpReq, res.MaxBody)
	if err == nil {
		err = bodyErr
	}
	if err == nil {
		value, err = d.run(req, body)
	}

	result := d.render(req, value, err)
	result.Identity = req.Identity
	result.Header.Set("Allow", res.Allow())
	result.Header.Set("Vary", "Authenticate, Accept")
	if req.Verb == resource.HEAD {
		result.Body = nil
	}
	d.finish(req, body, result, d.clock().Now().Sub(start))
	return result
}

// negotiate picks the emitter.  On failure it still returns the
// default emitter, to render the error with.
func negotiate(req *resource.Request) (media.Emitter, error) {
	res := req.Resource
	if req.Verb == resource.OPTIONS {
		return media.JSONEmitter{}, nil
	}
	emitter, err := media.SelectEmitter(req.Header.Get("Accept"), res.Emitters, res.StrictAccept)
	if err != nil {
		if len(res.Emitters) > 0 {
			return res.Emitters[0], err
		}
		return media.JSONEmitter{}, err
	}
	return emitter, nil
}

func hasBody(verb string) bool {
	return verb == resource.POST || verb == resource.PUT || verb == resource.PATCH
}

// run is everything between negotiation and rendering.
func (d *Dispatcher) run(req *resource.Request, body []byte) (value interface{}, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			response := restdata.ErrorResponse{}
			response.FromPanic(recovered)
			d.logger().WithFields(logrus.Fields{
				"resource": req.Resource.URLName,
				"method":   req.Verb,
				"stack":    response.Stack,
			}).Error("panic serving request")
			value = nil
			err = errors.New(response.Message)
		}
	}()

	res := req.Resource
	if !res.Allows(req.Verb) {
		return nil, restdata.Errorf(restdata.MethodNotAllowed,
			"Method '%s' not allowed on this resource.", req.Verb)
	}
	handler := handlerFor(res, req.Verb)
	if handler == nil {
		return nil, restdata.Errorf(restdata.NotImplemented,
			"Unknown or unsupported method '%s'", req.Verb)
	}

	preflight := req.Verb == resource.OPTIONS && res.AllowOptions
	if preflight {
		req.Identity = auth.Identity{Identifier: "anonymous", Authenticator: auth.Anonymous{}}
	} else {
		id, err := auth.Chain(req.Request, res.Authenticators)
		if err != nil {
			return nil, err
		}
		req.Identity = id
	}

	wait, err := res.Throttle.Check(req.Context(), req.Identity.Identifier)
	if err != nil {
		return nil, err
	}
	if wait > 0 {
		throttledTotal.WithLabelValues(res.URLName).Inc()
		return nil, restdata.ErrThrottled(wait)
	}

	if !preflight {
		if hasBody(req.Verb) {
			if req.Data, err = parse(req, body); err != nil {
				return nil, err
			}
		}
		if err = resolve(req); err != nil {
			return nil, err
		}
		if err = checkOwners(req, res); err != nil {
			return nil, err
		}
		if err = auth.CheckRights(req.Identity, req.Resources); err != nil {
			return nil, err
		}
	}

	return handler(req)
}

// parse decodes the buffered body with the parser matching
// Content-Type:.
func parse(req *resource.Request, body []byte) (map[string]interface{}, error) {
	contentType := req.Header.Get("Content-Type")
	parser := media.SelectParser(contentType, req.Resource.Parsers)
	if req.Resource.StrictContentType {
		var err error
		if parser, err = media.StrictParser(contentType, req.Resource.Parsers); err != nil {
			return nil, err
		}
	}
	if parser == nil {
		return map[string]interface{}{}, nil
	}
	data, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		var status restdata.ErrorStatus
		if errors.As(err, &status) {
			return nil, err
		}
		return nil, restdata.ErrBadRequest("Invalid request body: %v", err)
	}
	return data, nil
}

func (d *Dispatcher) render(req *resource.Request, value interface{}, err error) *Result {
	result := &Result{Status: http.StatusOK, Header: make(http.Header)}
	if err == nil {
		if err = d.renderValue(req, result, value); err == nil {
			return result
		}
		result.Header = make(http.Header)
	}
	d.renderError(req, result, err)
	return result
}

func (d *Dispatcher) renderValue(req *resource.Request, result *Result, value interface{}) error {
	if response, ok := value.(*resource.Response); ok {
		if response.Status != 0 {
			result.Status = response.Status
		}
		for k, v := range response.Header {
			result.Header[k] = v
		}
		value = response.Content
	}
	if value == nil {
		if result.Status == http.StatusOK {
			result.Status = http.StatusNoContent
		}
		return nil
	}
	if page, isPage := value.(*paginator.Page); isPage {
		if link := page.LinkHeader(); link != "" {
			result.Header.Set("Link", link)
		}
	}
	simple, err := req.Serializer.Serialize(value)
	if err != nil {
		return err
	}
	return d.emit(req, result, simple, true)
}

func (d *Dispatcher) emit(req *resource.Request, result *Result, simple interface{}, success bool) error {
	ctx := media.EmitContext{
		Success: success,
		Version: d.Registry.Version,
		Time:    d.clock().Now(),
	}
	if req.URL != nil {
		ctx.Callback = req.URL.Query().Get(media.DefaultCallback)
	}
	var buf bytes.Buffer
	if err := req.Emitter.Emit(&buf, simple, ctx); err != nil {
		return err
	}
	result.Simple = simple
	result.Body = buf.Bytes()
	result.Header.Set("Content-Type", req.Emitter.MediaType())
	return nil
}

// renderError renders classified errors through the emitter and
// everything else as raw text.
func (d *Dispatcher) renderError(req *resource.Request, result *Result, err error) {
	classified := restdata.Classify(err)
	result.Err = classified
	result.Status = classified.HTTPStatus()
	result.Simple = nil
	if classified.Kind != restdata.Internal {
		response := restdata.ErrorResponse{}
		response.FromError(classified)
		if classified.RetryAfter > 0 {
			result.Header.Set("Retry-After", strconv.Itoa(classified.RetryAfter))
		}
		emitErr := d.emit(req, result, response.Simple(), false)
		if emitErr == nil {
			return
		}
		classified = restdata.Wrap(restdata.Internal, emitErr)
		result.Err = classified
		result.Status = http.StatusInternalServerError
		result.Header.Del("Retry-After")
	}
	d.logger().WithError(classified).WithFields(logrus.Fields{
		"resource": req.Resource.URLName,
		"method":   req.Verb,
		"uri":      requestURI(req.Request),
	}).Error("internal error serving request")
	result.Header.Set("Content-Type", restdata.TextMediaType)
	result.Body = []byte(classified.Error())
}

// finish records a completed request.
func (d *Dispatcher) finish(req *resource.Request, body []byte, result *Result, elapsed time.Duration) {
	res := req.Resource
	observe(res.URLName, req.Verb, result.Status, elapsed)
	if d.AccessLog != nil && !res.DisableLog {
		d.AccessLog.Log(accesslog.Entry{
			Time:       d.clock().Now(),
			Method:     req.Verb,
			URI:        requestURI(req.Request),
			Version:    req.Proto,
			Status:     result.Status,
			Request:    requestSummary(req.Request, body),
			Response:   accesslog.Truncate(string(result.Body)),
			Identifier: req.Identity.Identifier,
			Resource:   res.URLName,
			Duration:   elapsed,
		})
	}
	if d.Notifier != nil && d.mails(result.Status) {
		d.Notifier.Notify(req.Request, result)
	}
}

func (d *Dispatcher) mails(status int) bool {
	statuses := d.MailErrors
	if statuses == nil {
		statuses = DefaultMailErrors
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
