// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serializer_test

import (
	"bytes"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/record/memory"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"
)

var personSchema = &record.Schema{
	Namespace: "main",
	Name:      "person",
	Fields: []record.Field{
		{Name: "name", Type: record.String},
		{Name: "password", Type: record.String, Hidden: true},
		{Name: "boss_id", Type: record.Integer},
	},
	Relations: []record.Relation{
		{Name: "boss", Model: "person", Kind: record.ToOne, Key: "boss_id"},
		{Name: "reports", Model: "person", Kind: record.ToMany, Key: "boss_id"},
	},
}

// people creates a chain of three people, each the boss of the next.
func people(t *testing.T) (record.Store, []*record.Record) {
	store := memory.New(personSchema)
	a, err := store.Adapter("person")
	require.NoError(t, err)
	var result []*record.Record
	var boss interface{}
	for _, name := range []string{"Ann", "Bob", "Cat"} {
		r, err := record.Create(a, map[string]interface{}{
			"name": name, "password": "x", "boss_id": boss,
		})
		require.NoError(t, err)
		result = append(result, r)
		boss = r.PK
	}
	return store, result
}

func TestScalars(t *testing.T) {
	s := &serializer.Serializer{}
	tests := []struct {
		In  interface{}
		Out interface{}
	}{
		{nil, nil},
		{"x", "x"},
		{[]byte("x"), "x"},
		{true, true},
		{17, 17},
		{int64(17), int64(17)},
		{2.5, 2.5},
		{big.NewRat(5, 4), 1.25},
		{time.Duration(0), "0s"},
		{struct{ A int }{1}, "{1}"},
		{[]string{"a", "b"}, []interface{}{"a", "b"}},
		{map[string]int{"a": 1}, map[string]interface{}{"a": 1}},
		{map[int]string{1: "a"}, map[string]interface{}{"1": "a"}},
	}
	for _, test := range tests {
		out, err := s.ToSimple(test.In)
		if assert.NoError(t, err, "%#v", test.In) {
			assert.Equal(t, test.Out, out, "%#v", test.In)
		}
	}
}

func TestDateTime(t *testing.T) {
	utc := time.Date(2012, 3, 4, 5, 6, 7, 890123456, time.UTC)
	assert.Equal(t, "2012-03-04T05:06:07.890Z", serializer.DateTime(utc))
	assert.Equal(t, "2012-03-04T05:06:07Z", serializer.DateTime(utc.Truncate(time.Second)))
	zone := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "2012-03-04T05:06:07.890-05:00",
		serializer.DateTime(time.Date(2012, 3, 4, 5, 6, 7, 890000000, zone)))
	// microseconds present but milliseconds zero still show a fraction
	assert.Equal(t, "2012-03-04T05:06:07.000Z",
		serializer.DateTime(time.Date(2012, 3, 4, 5, 6, 7, 5000, time.UTC)))
}

func TestIdempotent(t *testing.T) {
	simple := map[string]interface{}{
		"a": []interface{}{"x", int64(1), 2.5, nil, true},
		"b": map[string]interface{}{"c": "d"},
	}
	s := &serializer.Serializer{}
	once, err := s.ToSimple(simple)
	require.NoError(t, err)
	twice, err := s.ToSimple(once)
	require.NoError(t, err)
	assert.Equal(t, simple, once)
	assert.Equal(t, once, twice)
}

func TestJSONRoundTrip(t *testing.T) {
	simple := map[string]interface{}{
		"list": []interface{}{"x", "y"},
		"map":  map[string]interface{}{"k": "v", "n": nil},
		"t":    true,
	}
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	var buf bytes.Buffer
	require.NoError(t, codec.NewEncoder(&buf, h).Encode(simple))
	var back interface{}
	require.NoError(t, codec.NewDecoder(&buf, h).Decode(&back))
	assert.Equal(t, simple, back)
}

func TestRecordEnvelope(t *testing.T) {
	_, ps := people(t)
	s := &serializer.Serializer{}
	out, err := s.ToSimple(ps[1])
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"model": "main.person",
		"pk":    "2",
		"fields": map[string]interface{}{
			"name":    "Bob",
			"boss_id": int64(1),
		},
	}, out)

	s.Format = serializer.Flat
	out, err = s.ToSimple(ps[1])
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"id":      "2",
		"name":    "Bob",
		"boss_id": int64(1),
	}, out)
}

func TestFieldSelection(t *testing.T) {
	_, ps := people(t)
	tests := []struct {
		Options serializer.Options
		Fields  []string
	}{
		{serializer.Options{}, []string{"boss_id", "name"}},
		{serializer.Options{Fields: []string{"password"}}, []string{"password"}},
		{serializer.Options{Include: []string{"password"}}, []string{"boss_id", "name", "password"}},
		{serializer.Options{Exclude: []string{"boss_id"}}, []string{"name"}},
		{serializer.Options{Include: []string{"password"}, Exclude: []string{"password"}}, []string{"boss_id", "name"}},
		{serializer.Options{Fields: []string{"name"}, Exclude: []string{"name"}}, []string{"name"}},
	}
	for _, test := range tests {
		s := &serializer.Serializer{Options: test.Options}
		out, err := s.ToSimple(ps[0])
		if !assert.NoError(t, err) {
			continue
		}
		fields := out.(map[string]interface{})["fields"].(map[string]interface{})
		var names []string
		for name := range fields {
			names = append(names, name)
		}
		assert.ElementsMatch(t, test.Fields, names, "%+v", test.Options)
	}
}

func TestTransform(t *testing.T) {
	_, ps := people(t)
	s := &serializer.Serializer{
		Options: serializer.Options{Include: []string{"shout"}},
		Transforms: map[string]serializer.TransformFunc{
			"name": func(r *record.Record, s *serializer.Serializer) (interface{}, error) {
				return "Dr. " + r.Values["name"].(string), nil
			},
			"shout": func(r *record.Record, s *serializer.Serializer) (interface{}, error) {
				return []int{1, 2}, nil
			},
		},
	}
	out, err := s.ToSimple(ps[0])
	require.NoError(t, err)
	fields := out.(map[string]interface{})["fields"].(map[string]interface{})
	assert.Equal(t, "Dr. Ann", fields["name"])
	// transform output is not converted further
	assert.Equal(t, []int{1, 2}, fields["shout"])
}

func TestRelated(t *testing.T) {
	store, ps := people(t)
	s := &serializer.Serializer{
		Store: store,
		Options: serializer.Options{
			Fields: []string{"name", "boss", "reports"},
			Related: map[string]serializer.Options{
				"boss":    {Fields: []string{"name"}},
				"reports": {Fields: []string{"name"}},
			},
		},
	}
	out, err := s.ToSimple(ps[1])
	require.NoError(t, err)
	fields := out.(map[string]interface{})["fields"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"model":  "main.person",
		"pk":     "1",
		"fields": map[string]interface{}{"name": "Ann"},
	}, fields["boss"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{
			"model":  "main.person",
			"pk":     "3",
			"fields": map[string]interface{}{"name": "Cat"},
		},
	}, fields["reports"])

	// the root has no boss
	out, err = s.ToSimple(ps[0])
	require.NoError(t, err)
	fields = out.(map[string]interface{})["fields"].(map[string]interface{})
	assert.Nil(t, fields["boss"])

	// relations cannot be expanded without a store
	s.Store = nil
	_, err = s.ToSimple(ps[1])
	assert.Error(t, err)
}

func TestMaxDepth(t *testing.T) {
	store, ps := people(t)
	loop := serializer.Options{Fields: []string{"boss"}}
	loop.Related = map[string]serializer.Options{"boss": loop}
	s := &serializer.Serializer{Store: store, Options: loop, MaxDepth: 2}

	// Bob -> Ann -> nil fits in two levels
	_, err := s.ToSimple(ps[1])
	assert.NoError(t, err)

	// Cat -> Bob -> Ann does not
	_, err = s.ToSimple(ps[2])
	if assert.Error(t, err) {
		assert.Equal(t, restdata.Internal, restdata.Classify(err).Kind)
	}
}

func TestPostHook(t *testing.T) {
	s := &serializer.Serializer{
		PostHook: func(value, simple interface{}, s *serializer.Serializer) (interface{}, error) {
			m := simple.(map[string]interface{})
			m["true"] = true
			return m, nil
		},
	}
	out, err := s.Serialize(map[string]interface{}{"true": false})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"true": true}, out)

	out, err = s.ToSimple(map[string]interface{}{"true": false})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"true": false}, out)
}

type wrapped struct{ items []string }

func (w wrapped) ToSimple(s *serializer.Serializer) (interface{}, error) {
	return map[string]interface{}{"wrapped": w.items}, nil
}

func TestSimplifier(t *testing.T) {
	s := &serializer.Serializer{}
	out, err := s.ToSimple(wrapped{items: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"wrapped": []interface{}{"a"}}, out)
}

func TestParseFormat(t *testing.T) {
	f, err := serializer.ParseFormat("simple")
	assert.NoError(t, err)
	assert.Equal(t, serializer.Flat, f)
	f, err = serializer.ParseFormat("")
	assert.NoError(t, err)
	assert.Equal(t, serializer.Django, f)
	_, err = serializer.ParseFormat("yaml")
	assert.Error(t, err)
}

func TestXML(t *testing.T) {
	_, ps := people(t)
	s := &serializer.Serializer{Options: serializer.Options{Fields: []string{"name"}}}
	out, err := s.ToSimple([]interface{}{ps[0], "a<b"})
	require.NoError(t, err)
	assert.Equal(t,
		"<items><person><fields><name>Ann</name></fields>"+
			"<model>main.person</model><pk>1</pk></person>a&lt;b</items>",
		serializer.XML(out))

	assert.Equal(t, "<a>1</a><b></b>",
		serializer.XML(map[string]interface{}{"b": nil, "a": int64(1)}))
}

func TestXMLKeys(t *testing.T) {
	assert.Equal(t,
		`<item key="1x">1</item><item key="a b">2</item><item key="a&lt;b&#34;">3</item>`+
			`<ok-key.2>5</ok-key.2><item key="xmlns">4</item>`,
		serializer.XML(map[string]interface{}{
			"a b":      int64(2),
			"1x":       int64(1),
			"a<b\"":    int64(3),
			"xmlns":    int64(4),
			"ok-key.2": int64(5),
		}))
	assert.Equal(t, `<item key="">x</item>`,
		serializer.XML(map[string]interface{}{"": "x"}))
}
