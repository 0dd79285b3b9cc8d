// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"sort"
	"strings"

	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/sirupsen/logrus"
)

// lookupSep separates a field name from a lookup in a query
// parameter, as in "name__not".
const lookupSep = "__"

func requestLog(req *resource.Request) logrus.FieldLogger {
	if req.Registry != nil && req.Registry.Log != nil {
		return req.Registry.Log
	}
	return logrus.StandardLogger()
}

// collectionQuery builds the query for a GET on a collection: the
// ancestor records from the path, then query parameter filters, then
// sorting.
func collectionQuery(req *resource.Request) (record.Query, error) {
	res := req.Resource
	q := record.Query{Order: res.Order}
	for _, parent := range res.Parents() {
		key := parent.Name + "_id"
		if !res.HasField(key) {
			continue
		}
		parents := req.Records(parent.Name)
		if len(parents) == 0 {
			continue
		}
		pks := make([]interface{}, len(parents))
		for i, p := range parents {
			pks[i] = p.PK
		}
		q = q.And(record.In(key, pks...))
	}

	filters, err := queryFilters(req)
	if err != nil {
		return q, err
	}
	q = q.And(filters...)

	if order := sorting(req); len(order) > 0 {
		q.Order = order
	}
	return q, nil
}

// queryFilters turns query parameters naming model fields into
// filters.  Lookups other than "not" are not supported and are
// skipped.
func queryFilters(req *resource.Request) ([]record.Filter, error) {
	res := req.Resource
	schema := res.Schema()
	if schema == nil || req.URL == nil {
		return nil, nil
	}
	params := req.URL.Query()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var filters []record.Filter
	for _, name := range names {
		tokens := strings.Split(name, lookupSep)
		field := tokens[0]
		if !res.HasField(field) {
			continue
		}
		exclude := false
		if len(tokens) > 1 && tokens[len(tokens)-1] == "not" {
			exclude = true
			tokens = tokens[:len(tokens)-1]
		}
		if len(tokens) > 1 {
			requestLog(req).WithFields(logrus.Fields{
				"resource":  res.URLName,
				"parameter": name,
			}).Warn("unsupported filter lookup")
			continue
		}
		convert, err := schema.Converter(field)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, 0, len(params[name]))
		for _, raw := range params[name] {
			v, err := convert(raw)
			if err != nil {
				return nil, restdata.ErrBadRequest("Invalid filter %s: %v", name, err)
			}
			values = append(values, v)
		}
		filters = append(filters, record.Filter{Field: field, Values: values, Exclude: exclude})
	}
	return filters, nil
}

// sorting reads the sort parameter: field names, "-" first for
// descending.  Unknown fields are ignored.
func sorting(req *resource.Request) []record.Order {
	res := req.Resource
	if req.URL == nil {
		return nil
	}
	var order []record.Order
	for _, raw := range req.URL.Query()[res.DynPrefix+"sort"] {
		for _, field := range strings.Split(raw, ",") {
			field = strings.TrimSpace(field)
			desc := strings.HasPrefix(field, "-")
			field = strings.TrimPrefix(field, "-")
			if !res.HasField(field) {
				requestLog(req).WithFields(logrus.Fields{
					"resource": res.URLName,
					"field":    field,
				}).Warn("cannot sort on unknown field")
				continue
			}
			order = append(order, record.Order{Field: field, Desc: desc})
		}
	}
	return order
}
