// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-restkit/paginator"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
)

// handlerFor finds the handler of a verb: the resource's own, or the
// default.  HEAD runs the GET handler.  Resources without a model
// have no default handlers besides OPTIONS.
func handlerFor(res *resource.Descriptor, verb string) resource.HandlerFunc {
	if h := res.Handlers[verb]; h != nil {
		return h
	}
	switch verb {
	case resource.HEAD:
		return handlerFor(res, resource.GET)
	case resource.OPTIONS:
		return handleOptions
	}
	if res.Adapter == nil {
		return nil
	}
	switch verb {
	case resource.GET:
		return handleGet
	case resource.POST:
		return handlePost
	case resource.PUT, resource.PATCH:
		return handlePut
	case resource.DELETE:
		return handleDelete
	}
	return nil
}

func errResourceNotFound() error {
	return restdata.ErrNotFound("Resource not found.")
}

// handleGet returns the resolved records, or else a page of the
// filtered collection.
func handleGet(req *resource.Request) (interface{}, error) {
	switch own := req.Resources[req.Resource.Name].(type) {
	case *record.Record:
		return own, nil
	case []*record.Record:
		return recordList(own), nil
	}

	query, err := collectionQuery(req)
	if err != nil {
		return nil, err
	}
	records, err := req.Resource.Adapter.Filter(query)
	if err != nil {
		return nil, err
	}
	items := recordList(records)

	params := req.URL.Query()
	size := paginator.PageSize(params, req.Resource.DynPrefix+"max", req.Resource.PageSize())
	page, err := paginator.Paginate(req.URL.Path, params, items, size)
	if err != nil {
		return nil, err
	}
	if page != nil {
		return page, nil
	}
	return items, nil
}

// withParentKey copies data, pointing it at the parent record from
// the path.
func withParentKey(req *resource.Request) map[string]interface{} {
	data := make(map[string]interface{}, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	res := req.Resource
	if res.Parent == nil || !res.HasField(res.ParentKey()) {
		return data
	}
	if parent := req.Record(res.Parent.Name); parent != nil {
		data[res.ParentKey()] = parent.PK
	}
	return data
}

// handlePost creates a record, answering 201 with its location.
func handlePost(req *resource.Request) (interface{}, error) {
	created, err := record.Create(req.Resource.Adapter, withParentKey(req))
	if err != nil {
		return nil, err
	}
	response := resource.Created(created)
	if loc, err := location(req, created); err == nil {
		response.Header.Set("Location", loc)
	}
	return response, nil
}

// handlePut updates every resolved record.  A single record comes
// back as itself, several as a list.
func handlePut(req *resource.Request) (interface{}, error) {
	own := req.Own()
	if len(own) == 0 {
		return nil, errResourceNotFound()
	}
	data := withParentKey(req)
	updated := make([]interface{}, 0, len(own))
	for _, r := range own {
		changed, err := record.Update(req.Resource.Adapter, r, data)
		if err != nil {
			return nil, err
		}
		updated = append(updated, changed)
	}
	if len(updated) == 1 {
		return updated[0], nil
	}
	return updated, nil
}

// handleDelete deletes every resolved record.
func handleDelete(req *resource.Request) (interface{}, error) {
	own := req.Own()
	if len(own) == 0 {
		return nil, errResourceNotFound()
	}
	for _, r := range own {
		if err := req.Resource.Adapter.Delete(r); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func handleOptions(req *resource.Request) (interface{}, error) {
	return "OK", nil
}
