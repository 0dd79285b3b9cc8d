// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// record.Store.  There is no persistence, nor is there any automatic
// sharing.  The entire store is behind a single global semaphore to
// protect against concurrent updates; records are copied on the way
// in and on the way out, so callers never share state with the store.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of a whole
// REST API.  It is tuned for correctness, not performance or
// scalability.
package memory

import (
	"strconv"
	"strings"
	"sync"

	"github.com/diffeo/go-restkit/record"
)

// New creates a new store holding (empty) tables for the given
// schemas.  More can be added later with AddSchema.
func New(schemas ...*record.Schema) *Store {
	s := &Store{tables: make(map[string]*table)}
	for _, schema := range schemas {
		s.AddSchema(schema)
	}
	return s
}

// Store is an in-memory record.Store.
type Store struct {
	tables map[string]*table
	sem    sync.Mutex
}

// storable is a common interface for objects that need to take the
// global lock on the store.
type storable interface {
	Store() *Store
}

// globalLock locks the store at the root of the object tree.  Pair
// this with globalUnlock, as
//
//     globalLock(self)
//     defer globalUnlock(self)
func globalLock(s storable) {
	s.Store().sem.Lock()
}

// globalUnlock unlocks the store at the root of the object tree.
func globalUnlock(s storable) {
	s.Store().sem.Unlock()
}

// Store returns the store itself.
func (s *Store) Store() *Store {
	return s
}

// AddSchema creates a table for a schema, if there is not one
// already.
func (s *Store) AddSchema(schema *record.Schema) {
	globalLock(s)
	defer globalUnlock(s)

	if _, present := s.tables[schema.Name]; !present {
		s.tables[schema.Name] = &table{
			store:   s,
			schema:  schema,
			records: make(map[int64]*record.Record),
		}
	}
}

// Adapter returns the adapter for a model.
func (s *Store) Adapter(model string) (record.Adapter, error) {
	globalLock(s)
	defer globalUnlock(s)

	t := s.tables[model]
	if t == nil {
		return nil, record.ErrNoSuchModel{Name: model}
	}
	return t, nil
}

// table is the record.Adapter for one model.
type table struct {
	store   *Store
	schema  *record.Schema
	records map[int64]*record.Record
	lastPK  int64
}

func (t *table) Store() *Store {
	return t.store
}

func (t *table) Schema() *record.Schema {
	return t.schema
}

func (t *table) Get(pk string) (*record.Record, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(pk), 10, 64)
	if err != nil {
		return nil, record.ErrNotFound
	}

	globalLock(t)
	defer globalUnlock(t)

	r := t.records[id]
	if r == nil {
		return nil, record.ErrNotFound
	}
	return r.Clone(), nil
}

func (t *table) Filter(q record.Query) ([]*record.Record, error) {
	if err := q.Check(t.schema); err != nil {
		return nil, err
	}

	globalLock(t)
	defer globalUnlock(t)

	result := make([]*record.Record, 0, len(t.records))
	for _, r := range t.records {
		if q.Match(r) {
			result = append(result, r.Clone())
		}
	}
	q.Sort(result)
	return result, nil
}

func (t *table) Save(r *record.Record) (*record.Record, error) {
	globalLock(t)
	defer globalUnlock(t)

	stored := r.Clone()
	stored.Schema = t.schema
	if stored.PK == 0 {
		t.lastPK++
		stored.PK = t.lastPK
	} else if stored.PK > t.lastPK {
		t.lastPK = stored.PK
	}
	t.records[stored.PK] = stored
	return stored.Clone(), nil
}

func (t *table) Delete(r *record.Record) error {
	globalLock(t)
	defer globalUnlock(t)

	if _, present := t.records[r.PK]; !present {
		return record.ErrNotFound
	}
	delete(t.records, r.PK)
	return nil
}
