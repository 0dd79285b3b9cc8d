// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package recordtest provides generic functional tests for the
// record.Store interface.  A typical backend test module needs to
// wrap Suite to create its store:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-restkit/record/recordtest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             recordtest.Suite
//     }
//
//     // SetupTest creates a fresh store for every test.
//     func (s *Suite) SetupTest() {
//             s.Store = New(recordtest.Schemas()...)
//     }
//
//     // TestStore runs the record.Store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package recordtest

import (
	"time"

	"github.com/diffeo/go-restkit/record"
	"github.com/stretchr/testify/suite"
)

// AuthorSchema is the parent model used by the suite.
var AuthorSchema = &record.Schema{
	Namespace: "main",
	Name:      "author",
	Fields: []record.Field{
		{Name: "name", Type: record.String, Required: true},
		{Name: "active", Type: record.Boolean, Default: true},
	},
	Relations: []record.Relation{
		{Name: "books", Model: "book", Kind: record.ToMany, Key: "author_id"},
	},
}

// BookSchema is the child model used by the suite.
var BookSchema = &record.Schema{
	Namespace: "main",
	Name:      "book",
	Fields: []record.Field{
		{Name: "name", Type: record.String, Required: true},
		{Name: "author_id", Type: record.Integer, Required: true},
		{Name: "price", Type: record.Float},
		{Name: "published", Type: record.DateTime},
	},
	Relations: []record.Relation{
		{Name: "author", Model: "author", Kind: record.ToOne, Key: "author_id"},
	},
}

// Schemas returns every schema the suite needs the store to hold.
func Schemas() []*record.Schema {
	return []*record.Schema{AuthorSchema, BookSchema}
}

// Suite is the generic record.Store test suite.
type Suite struct {
	suite.Suite

	// Store contains the store under test.  It must be empty
	// at the start of each test and hold Schemas().
	Store record.Store
}

func (s *Suite) adapter(model string) record.Adapter {
	a, err := s.Store.Adapter(model)
	s.Require().NoError(err)
	return a
}

func (s *Suite) create(model string, data map[string]interface{}) *record.Record {
	r, err := record.Create(s.adapter(model), data)
	s.Require().NoError(err)
	return r
}

// TestNoSuchModel checks that unknown models are reported.
func (s *Suite) TestNoSuchModel() {
	_, err := s.Store.Adapter("publisher")
	s.Equal(record.ErrNoSuchModel{Name: "publisher"}, err)
}

// TestCreateGet creates a record and fetches it back.
func (s *Suite) TestCreateGet() {
	authors := s.adapter("author")
	created := s.create("author", map[string]interface{}{"name": "John"})
	s.NotZero(created.PK)
	s.Equal("John", created.Values["name"])
	s.Equal(true, created.Values["active"])

	got, err := authors.Get(created.PKString())
	if s.NoError(err) {
		s.Equal(created.PK, got.PK)
		s.Equal("John", got.Values["name"])
		s.Equal(true, got.Values["active"])
		s.Equal("main.author", got.Schema.Label())
	}

	second := s.create("author", map[string]interface{}{"name": "Jane"})
	s.NotEqual(created.PK, second.PK)
}

// TestGetMissing checks the not-found cases, including unparseable
// keys.
func (s *Suite) TestGetMissing() {
	authors := s.adapter("author")
	_, err := authors.Get("12345")
	s.Equal(record.ErrNotFound, err)
	_, err = authors.Get("abc")
	s.Equal(record.ErrNotFound, err)
}

// TestCreateInvalid checks that validation failures are not saved.
func (s *Suite) TestCreateInvalid() {
	books := s.adapter("book")
	_, err := record.Create(books, map[string]interface{}{"price": "cheap"})
	if s.IsType(&record.ValidationError{}, err) {
		fields := err.(*record.ValidationError).Fields
		s.Contains(fields, "name")
		s.Contains(fields, "author_id")
		s.Contains(fields, "price")
	}
	all, err := books.Filter(record.Query{})
	s.NoError(err)
	s.Empty(all)
}

func (s *Suite) books() (author *record.Record, books []*record.Record) {
	author = s.create("author", map[string]interface{}{"name": "John"})
	other := s.create("author", map[string]interface{}{"name": "Jane"})
	for i, name := range []string{"Beta", "Alpha", "Gamma"} {
		books = append(books, s.create("book", map[string]interface{}{
			"name":      name,
			"author_id": author.PK,
			"price":     float64(10 - i),
			"published": time.Date(2016, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
		}))
	}
	books = append(books, s.create("book", map[string]interface{}{
		"name":      "Delta",
		"author_id": other.PK,
	}))
	return
}

func pks(records []*record.Record) []int64 {
	result := make([]int64, len(records))
	for i, r := range records {
		result[i] = r.PK
	}
	return result
}

// TestFilter runs equality, set and exclusion filters.
func (s *Suite) TestFilter() {
	author, books := s.books()
	adapter := s.adapter("book")

	all, err := adapter.Filter(record.Query{})
	if s.NoError(err) {
		s.Equal(pks(books), pks(all))
	}

	mine, err := adapter.Filter(record.Query{Filters: []record.Filter{
		record.Eq("author_id", author.PK),
	}})
	if s.NoError(err) {
		s.Equal(pks(books[:3]), pks(mine))
	}

	some, err := adapter.Filter(record.Query{Filters: []record.Filter{
		record.In("pk", books[0].PK, books[2].PK),
	}})
	if s.NoError(err) {
		s.Equal([]int64{books[0].PK, books[2].PK}, pks(some))
	}

	rest, err := adapter.Filter(record.Query{Filters: []record.Filter{
		{Field: "name", Values: []interface{}{"Alpha", "Delta"}, Exclude: true},
	}})
	if s.NoError(err) {
		s.Equal([]int64{books[0].PK, books[2].PK}, pks(rest))
	}

	_, err = adapter.Filter(record.Query{Filters: []record.Filter{
		record.Eq("color", "red"),
	}})
	s.Error(err)
}

// TestSort checks ascending and descending order.
func (s *Suite) TestSort() {
	author, books := s.books()
	adapter := s.adapter("book")
	q := record.Query{
		Filters: []record.Filter{record.Eq("author_id", author.PK)},
		Order:   []record.Order{{Field: "name"}},
	}
	sorted, err := adapter.Filter(q)
	if s.NoError(err) {
		s.Equal([]int64{books[1].PK, books[0].PK, books[2].PK}, pks(sorted))
	}

	q.Order = []record.Order{{Field: "published", Desc: true}}
	sorted, err = adapter.Filter(q)
	if s.NoError(err) {
		s.Equal([]int64{books[2].PK, books[1].PK, books[0].PK}, pks(sorted))
	}
}

// TestUpdate changes a field and checks it is persisted.
func (s *Suite) TestUpdate() {
	_, books := s.books()
	adapter := s.adapter("book")
	updated, err := record.Update(adapter, books[0], map[string]interface{}{
		"name": "Beta 2",
	})
	if s.NoError(err) {
		s.Equal(books[0].PK, updated.PK)
		s.Equal("Beta 2", updated.Values["name"])
	}
	got, err := adapter.Get(books[0].PKString())
	if s.NoError(err) {
		s.Equal("Beta 2", got.Values["name"])
		s.Equal(books[0].Values["author_id"], got.Values["author_id"])
	}
	s.Equal("Beta", books[0].Values["name"], "caller copy must not change")
}

// TestDelete removes a record.
func (s *Suite) TestDelete() {
	_, books := s.books()
	adapter := s.adapter("book")
	s.NoError(adapter.Delete(books[0]))
	_, err := adapter.Get(books[0].PKString())
	s.Equal(record.ErrNotFound, err)
	s.Equal(record.ErrNotFound, adapter.Delete(books[0]))
	all, err := adapter.Filter(record.Query{})
	if s.NoError(err) {
		s.Len(all, 3)
	}
}

// TestRelated resolves both relation directions.
func (s *Suite) TestRelated() {
	author, books := s.books()
	rel, _ := BookSchema.Relation("author")
	parent, err := record.Related(s.Store, books[0], rel)
	if s.NoError(err) && s.IsType(&record.Record{}, parent) {
		s.Equal(author.PK, parent.(*record.Record).PK)
	}

	rel, _ = AuthorSchema.Relation("books")
	children, err := record.Related(s.Store, author, rel)
	if s.NoError(err) && s.IsType([]*record.Record{}, children) {
		s.Equal(pks(books[:3]), pks(children.([]*record.Record)))
	}
}

// TestGetOne checks the single-record lookup helper.
func (s *Suite) TestGetOne() {
	author, _ := s.books()
	adapter := s.adapter("book")
	one, err := record.GetOne(adapter, record.Query{Filters: []record.Filter{
		record.Eq("name", "Gamma"),
	}})
	if s.NoError(err) {
		s.Equal("Gamma", one.Values["name"])
	}
	_, err = record.GetOne(adapter, record.Query{Filters: []record.Filter{
		record.Eq("author_id", author.PK),
	}})
	s.Equal(record.ErrMultiple, err)
	_, err = record.GetOne(adapter, record.Query{Filters: []record.Filter{
		record.Eq("name", "Omega"),
	}})
	s.Equal(record.ErrNotFound, err)
}
