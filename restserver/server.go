// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"strings"

	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// NewRouter creates a new HTTP handler serving every resource of the
// dispatcher's registry.  For more control over this setup, create a
// mux.Router and call PopulateRouter instead.
func NewRouter(d *Dispatcher) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, d)
	return r
}

// PopulateRouter adds a route for the collection and the item of
// every resource to an existing github.com/gorilla/mux router.  This
// can be used, for instance, to place the API under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/api").Subrouter()
//     PopulateRouter(s, dispatcher)
//
// The registry is frozen; later registrations fail.
func PopulateRouter(r *mux.Router, d *Dispatcher) {
	d.Registry.Freeze()
	for _, route := range d.Registry.Routes() {
		h := &resourceHandler{Dispatcher: d, Resource: route.Resource}
		r.Path(route.Collection).Name(route.Name).Handler(h)
		r.Path(strings.TrimSuffix(route.Collection, "/")).Handler(h)
		r.Path(route.Item).Name(route.Name + "-item").Handler(h)
		r.Path(strings.TrimSuffix(route.Item, "/")).Handler(h)
	}
}

type resourceHandler struct {
	Dispatcher *Dispatcher
	Resource   *resource.Descriptor
}

func (h *resourceHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			response := restdata.ErrorResponse{}
			response.FromPanic(recovered)
			h.Dispatcher.logger().WithFields(logrus.Fields{
				"uri":   requestURI(req),
				"stack": response.Stack,
			}).Error("panic writing response")
			resp.Header().Set("Content-Type", restdata.JSONMediaType)
			resp.WriteHeader(http.StatusInternalServerError)
			json := &codec.JsonHandle{}
			encoder := codec.NewEncoder(resp, json)
			_ = encoder.Encode(response.Simple())
		}
	}()

	result := h.Dispatcher.Dispatch(req, h.Resource, mux.Vars(req))
	if err := result.Write(resp); err != nil {
		// the status line is already out; all that is left is
		// to say so
		h.Dispatcher.logger().WithError(err).WithFields(logrus.Fields{
			"uri":    requestURI(req),
			"status": result.Status,
		}).Warn("could not write response")
	}
}
