// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package record defines the contract between REST resources and the
// data store behind them.  A store is a set of Adapters, one per
// record type (model); each adapter can fetch a record by primary
// key, fetch a filtered collection, save, and delete.  Schemas carry
// the field list and per-field string converters used for filtering.
//
// Primary keys are integers.  They are assigned by Adapter.Save() the
// first time a record with a zero PK is saved, and are rendered as
// decimal strings on the wire.
//
// Two implementations are provided, package memory and package
// postgres, and both are tested with the generic suite in package
// recordtest.
package record

import (
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Record is one stored instance of a model.
type Record struct {
	Schema *Schema
	PK     int64
	Values map[string]interface{}
}

// New creates an unsaved record of a schema.
func New(schema *Schema, values map[string]interface{}) *Record {
	r := &Record{Schema: schema, Values: make(map[string]interface{})}
	for k, v := range values {
		r.Values[k] = v
	}
	return r
}

// PKString returns the primary key as it appears in URLs and record
// envelopes.
func (r *Record) PKString() string {
	return strconv.FormatInt(r.PK, 10)
}

// Get returns a field value.  "pk" and "id" return the primary key.
func (r *Record) Get(name string) interface{} {
	if name == "pk" || name == "id" {
		return r.PK
	}
	return r.Values[name]
}

// Clone returns a copy of the record with its own value map.
func (r *Record) Clone() *Record {
	c := New(r.Schema, r.Values)
	c.PK = r.PK
	return c
}

// Fields returns the record's values plus "id", suitable for decoding
// into a typed struct.
func (r *Record) Fields() map[string]interface{} {
	result := make(map[string]interface{}, len(r.Values)+1)
	for k, v := range r.Values {
		result[k] = v
	}
	result["id"] = r.PK
	return result
}

// Decode copies the record's fields into out, which must be a pointer
// to a struct or map.  Struct fields are matched by their
// "mapstructure" tag or, failing that, case-insensitively by name.
func (r *Record) Decode(out interface{}) error {
	config := mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return err
	}
	return decoder.Decode(r.Fields())
}

// Adapter performs CRUD operations for one model.
type Adapter interface {
	// Schema returns the model's schema.
	Schema() *Schema

	// Get fetches a record by primary key string.  Returns
	// ErrNotFound if there is no such record or if pk is not a
	// valid key.
	Get(pk string) (*Record, error)

	// Filter returns every record matching q, in q's order
	// (primary key order if none is given).
	Filter(q Query) ([]*Record, error)

	// Save stores a record.  If its PK is zero a new key is
	// assigned.  Returns the record as stored.
	Save(r *Record) (*Record, error)

	// Delete removes a record.  Returns ErrNotFound if it is not
	// stored.
	Delete(r *Record) error
}

// Store is a collection of adapters, one per model.
type Store interface {
	// Adapter returns the adapter for a model name, or
	// ErrNoSuchModel.
	Adapter(model string) (Adapter, error)
}

// GetOne fetches the single record matching q.  It returns
// ErrNotFound if there is none and ErrMultiple if there are several.
func GetOne(a Adapter, q Query) (*Record, error) {
	records, err := a.Filter(q)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return records[0], nil
	}
	return nil, ErrMultiple
}

// Create validates data against the adapter's schema and saves a new
// record.
func Create(a Adapter, data map[string]interface{}) (*Record, error) {
	values, err := a.Schema().Validate(data, false)
	if err != nil {
		return nil, err
	}
	return a.Save(New(a.Schema(), values))
}

// Update validates data as a partial update and saves the changed
// record.
func Update(a Adapter, r *Record, data map[string]interface{}) (*Record, error) {
	values, err := a.Schema().Validate(data, true)
	if err != nil {
		return nil, err
	}
	changed := r.Clone()
	for k, v := range values {
		changed.Values[k] = v
	}
	return a.Save(changed)
}

// Related resolves a relation of r.  A ToOne relation returns a
// *Record, or nil if the key field is unset; a ToMany relation returns
// a []*Record.
func Related(s Store, r *Record, rel Relation) (interface{}, error) {
	a, err := s.Adapter(rel.Model)
	if err != nil {
		return nil, err
	}
	switch rel.Kind {
	case ToOne:
		key := r.Get(rel.Key)
		if key == nil {
			return nil, nil
		}
		pk, err := Coerce(Integer, key)
		if err != nil {
			return nil, err
		}
		related, err := a.Get(strconv.FormatInt(pk.(int64), 10))
		if err == ErrNotFound {
			return nil, nil
		}
		return related, err
	default:
		return a.Filter(Query{Filters: []Filter{Eq(rel.Key, r.PK)}})
	}
}
