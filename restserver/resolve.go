// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"

	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
)

// keys finds the primary keys given for a resource: the path
// parameter, else repeated query parameters, else a body field.
func keys(req *resource.Request, name string) []string {
	if v := req.Vars[name]; v != "" {
		return []string{v}
	}
	if req.URL != nil {
		if values := req.URL.Query()[name]; len(values) > 0 {
			return values
		}
	}
	switch v := req.Data[name].(type) {
	case nil:
		return nil
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			result[i] = fmt.Sprint(item)
		}
		return result
	case []string:
		return v
	default:
		return []string{fmt.Sprint(v)}
	}
}

// resolve loads the records named by the request, root ancestor
// first.  One key gives a *record.Record, several a []*record.Record.
// An ancestor that does not exist is left unresolved for checkOwners
// to refuse.
func resolve(req *resource.Request) error {
	for _, d := range req.Resource.Parents() {
		err := resolveOne(req, d)
		if err != nil && restdata.Classify(err).Kind != restdata.NotFound {
			return err
		}
	}
	return resolveOne(req, req.Resource)
}

func resolveOne(req *resource.Request, d *resource.Descriptor) error {
	if d.Adapter == nil {
		return nil
	}
	pks := keys(req, d.Name)
	if len(pks) == 0 {
		return nil
	}

	if len(pks) == 1 {
		r, err := d.Adapter.Get(pks[0])
		if err != nil {
			return resolveError(err)
		}
		req.Resources[d.Name] = r
		return nil
	}

	values := make([]interface{}, len(pks))
	for i, pk := range pks {
		v, err := record.Coerce(record.Integer, pk)
		if err != nil {
			return errResourceNotFound()
		}
		values[i] = v
	}
	records, err := d.Adapter.Filter(record.Query{Filters: []record.Filter{record.In("id", values...)}})
	if err != nil {
		return resolveError(err)
	}
	if len(records) == 0 {
		return errResourceNotFound()
	}
	req.Resources[d.Name] = records
	return nil
}

func resolveError(err error) error {
	switch {
	case errors.Is(err, record.ErrNotFound):
		return errResourceNotFound()
	case errors.Is(err, record.ErrMultiple):
		return restdata.ErrConflict("Resources conflict.")
	}
	return err
}

// checkOwners verifies, from the root down, that every resolved
// record of a nested resource points at the resolved parent record,
// and that a parent named in the request exists.
func checkOwners(req *resource.Request, d *resource.Descriptor) error {
	if d.AllowPublicAccess || d.Parent == nil {
		return nil
	}
	if err := checkOwners(req, d.Parent); err != nil {
		return err
	}
	if d.Parent.Adapter == nil {
		return nil
	}
	parent := req.Record(d.Parent.Name)
	if parent == nil && len(keys(req, d.Parent.Name)) > 0 {
		return errForbidden()
	}
	objects := req.Records(d.Name)
	if d.Adapter == nil || len(objects) == 0 {
		return nil
	}
	if parent == nil {
		return errForbidden()
	}
	for _, o := range objects {
		if !record.Equal(o.Get(d.ParentKey()), parent.PK) {
			return errForbidden()
		}
	}
	return nil
}

func errForbidden() error {
	return restdata.ErrForbidden("Access forbidden.")
}
