// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package record

import (
	"sort"
)

// Filter restricts a query to records whose field matches one of
// Values, or, if Exclude is set, matches none of them.
type Filter struct {
	Field   string
	Values  []interface{}
	Exclude bool
}

// Eq creates a filter matching field == value.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Values: []interface{}{value}}
}

// In creates a filter matching any of values.
func In(field string, values ...interface{}) Filter {
	return Filter{Field: field, Values: values}
}

// Match says whether a record passes the filter.
func (f Filter) Match(r *Record) bool {
	value := r.Get(f.Field)
	found := false
	for _, v := range f.Values {
		if Equal(value, v) {
			found = true
			break
		}
	}
	return found != f.Exclude
}

// Order sorts a query by one field.
type Order struct {
	Field string
	Desc  bool
}

// Query is a conjunction of filters plus a sort order.
type Query struct {
	Filters []Filter
	Order   []Order
}

// And returns a copy of q with more filters added.
func (q Query) And(filters ...Filter) Query {
	result := Query{
		Filters: make([]Filter, 0, len(q.Filters)+len(filters)),
		Order:   q.Order,
	}
	result.Filters = append(result.Filters, q.Filters...)
	result.Filters = append(result.Filters, filters...)
	return result
}

// Match says whether a record passes every filter.
func (q Query) Match(r *Record) bool {
	for _, f := range q.Filters {
		if !f.Match(r) {
			return false
		}
	}
	return true
}

// Check verifies that every field the query names exists in schema.
func (q Query) Check(schema *Schema) error {
	for _, f := range q.Filters {
		if !schema.HasField(f.Field) {
			return ErrNoSuchField{Model: schema.Label(), Field: f.Field}
		}
	}
	for _, o := range q.Order {
		if !schema.HasField(o.Field) {
			return ErrNoSuchField{Model: schema.Label(), Field: o.Field}
		}
	}
	return nil
}

// Sort orders records in place by q's order, breaking ties (and
// ordering everything when q has no order) by primary key.
func (q Query) Sort(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, o := range q.Order {
			c := Compare(records[i].Get(o.Field), records[j].Get(o.Field))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return records[i].PK < records[j].PK
	})
}
