// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package record

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookSchema = &Schema{
	Namespace: "main",
	Name:      "book",
	Fields: []Field{
		{Name: "name", Type: String, Required: true},
		{Name: "price", Type: Decimal},
		{Name: "author_id", Type: Integer},
		{Name: "published", Type: DateTime},
		{Name: "secret", Type: String, Hidden: true},
		{Name: "status", Type: Integer, Default: int64(1)},
	},
	Relations: []Relation{
		{Name: "author", Model: "author", Kind: ToOne, Key: "author_id"},
	},
}

func TestSchemaNames(t *testing.T) {
	assert.Equal(t, "main.book", bookSchema.Label())
	assert.Equal(t,
		[]string{"id", "name", "price", "author_id", "published", "secret", "status"},
		bookSchema.FieldNames())
	assert.Equal(t,
		[]string{"author_id", "name", "price", "published", "status"},
		bookSchema.SerializableFields())
	assert.True(t, bookSchema.HasField("pk"))
	assert.False(t, bookSchema.HasField("author"))

	rel, ok := bookSchema.Relation("author")
	if assert.True(t, ok) {
		assert.Equal(t, "author_id", rel.Key)
	}
}

func TestValidate(t *testing.T) {
	values, err := bookSchema.Validate(map[string]interface{}{
		"name":      "Dune",
		"author_id": float64(3),
		"price":     "9.99",
		"bogus":     true,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "Dune", values["name"])
	assert.Equal(t, int64(3), values["author_id"])
	assert.Equal(t, int64(1), values["status"])
	assert.Equal(t, 0, values["price"].(*big.Rat).Cmp(big.NewRat(999, 100)))
	assert.NotContains(t, values, "bogus")
	assert.NotContains(t, values, "published")

	_, err = bookSchema.Validate(map[string]interface{}{
		"author_id": "three",
	}, false)
	if assert.IsType(t, &ValidationError{}, err) {
		fields := err.(*ValidationError).Fields
		assert.Equal(t, "This field is required.", fields["name"])
		assert.Equal(t, "Enter a whole number.", fields["author_id"])
	}

	values, err = bookSchema.Validate(map[string]interface{}{
		"published": "2016-03-04",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"published": time.Date(2016, 3, 4, 0, 0, 0, 0, time.UTC),
	}, values)
}

func TestConverter(t *testing.T) {
	conv, err := bookSchema.Converter("pk")
	require.NoError(t, err)
	v, err := conv("12")
	if assert.NoError(t, err) {
		assert.Equal(t, int64(12), v)
	}
	_, err = conv("x")
	assert.Error(t, err)

	_, err = bookSchema.Converter("nope")
	assert.Equal(t, ErrNoSuchField{Model: "main.book", Field: "nope"}, err)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		Type   FieldType
		In     interface{}
		Out    interface{}
		Failed bool
	}{
		{Type: String, In: "x", Out: "x"},
		{Type: String, In: 17, Out: "17"},
		{Type: Integer, In: 3, Out: int64(3)},
		{Type: Integer, In: float64(3), Out: int64(3)},
		{Type: Integer, In: 3.5, Failed: true},
		{Type: Integer, In: " 42 ", Out: int64(42)},
		{Type: Float, In: "2.5", Out: 2.5},
		{Type: Float, In: int64(2), Out: float64(2)},
		{Type: Boolean, In: "yes", Out: true},
		{Type: Boolean, In: "0", Out: false},
		{Type: Boolean, In: "maybe", Failed: true},
		{Type: DateTime, In: "not a date", Failed: true},
	}
	for _, test := range tests {
		out, err := Coerce(test.Type, test.In)
		if test.Failed {
			assert.Error(t, err, "%v %#v", test.Type, test.In)
		} else if assert.NoError(t, err, "%v %#v", test.Type, test.In) {
			assert.Equal(t, test.Out, out, "%v %#v", test.Type, test.In)
		}
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(int64(2), 2))
	assert.Equal(t, 0, Compare(int64(2), 2.0))
	assert.Equal(t, -1, Compare(1, 1.5))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(nil, 0))
	assert.Equal(t, -1, Compare(false, true))
	now := time.Now()
	assert.Equal(t, 1, Compare(now.Add(time.Second), now))
}

func TestQuery(t *testing.T) {
	records := []*Record{
		{Schema: bookSchema, PK: 1, Values: map[string]interface{}{"name": "b", "author_id": int64(1)}},
		{Schema: bookSchema, PK: 2, Values: map[string]interface{}{"name": "a", "author_id": int64(2)}},
		{Schema: bookSchema, PK: 3, Values: map[string]interface{}{"name": "c", "author_id": int64(1)}},
	}

	q := Query{Filters: []Filter{Eq("author_id", 1)}}
	assert.True(t, q.Match(records[0]))
	assert.False(t, q.Match(records[1]))

	q = Query{Filters: []Filter{{Field: "pk", Values: []interface{}{int64(1), int64(2)}, Exclude: true}}}
	assert.False(t, q.Match(records[0]))
	assert.True(t, q.Match(records[2]))

	sorted := append([]*Record(nil), records...)
	Query{Order: []Order{{Field: "name", Desc: true}}}.Sort(sorted)
	assert.Equal(t, []int64{3, 1, 2}, []int64{sorted[0].PK, sorted[1].PK, sorted[2].PK})

	Query{Order: []Order{{Field: "author_id"}}}.Sort(sorted)
	assert.Equal(t, []int64{1, 3, 2}, []int64{sorted[0].PK, sorted[1].PK, sorted[2].PK})

	assert.NoError(t, Query{Filters: []Filter{Eq("name", "a")}}.Check(bookSchema))
	assert.Error(t, Query{Order: []Order{{Field: "nope"}}}.Check(bookSchema))

	more := q.And(Eq("name", "c"))
	assert.Len(t, more.Filters, 2)
	assert.Len(t, q.Filters, 1)
}

func TestRecordDecode(t *testing.T) {
	r := &Record{Schema: bookSchema, PK: 7, Values: map[string]interface{}{
		"name":      "Dune",
		"author_id": int64(3),
	}}
	var book struct {
		ID       int64
		Name     string
		AuthorID int64 `mapstructure:"author_id"`
	}
	require.NoError(t, r.Decode(&book))
	assert.Equal(t, int64(7), book.ID)
	assert.Equal(t, "Dune", book.Name)
	assert.Equal(t, int64(3), book.AuthorID)
	assert.Equal(t, "7", r.PKString())
	assert.Equal(t, int64(7), r.Get("pk"))

	c := r.Clone()
	c.Values["name"] = "Emma"
	assert.Equal(t, "Dune", r.Values["name"])
}
