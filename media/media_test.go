// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package media

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/diffeo/go-restkit/restdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

var jsonXML = []Emitter{JSONEmitter{}, XMLEmitter{}}

func TestSelectEmitterDefault(t *testing.T) {
	for _, accept := range []string{"", "*/*", " */* "} {
		e, err := SelectEmitter(accept, jsonXML, true)
		if assert.NoError(t, err, accept) {
			assert.Equal(t, JSONEmitter{}, e, accept)
		}
	}
	// reordering the header does not move */* off the default
	e, err := SelectEmitter("*/*;q=0.9, */*", jsonXML, false)
	if assert.NoError(t, err) {
		assert.Equal(t, JSONEmitter{}, e)
	}
}

func TestSelectEmitterMatch(t *testing.T) {
	tests := []struct {
		Accept string
		Type   string
	}{
		{"application/xml", restdata.XMLMediaType},
		{"application/json", restdata.JSONMediaType},
		{"text/html, application/xml;q=0.9, */*;q=0.8", restdata.XMLMediaType},
		{"application/*", restdata.JSONMediaType},
		{"application/json;q=0.5, application/xml", restdata.XMLMediaType},
		{"application/*;q=0.5, application/xml;q=0.5", restdata.XMLMediaType},
		{"application/xml;q=0, */*", restdata.JSONMediaType},
		{"text/html", restdata.JSONMediaType},
		{"garbage;;;", restdata.JSONMediaType},
	}
	for _, test := range tests {
		e, err := SelectEmitter(test.Accept, jsonXML, false)
		if assert.NoError(t, err, test.Accept) {
			assert.Equal(t, test.Type, e.MediaType(), test.Accept)
		}
	}
}

func TestSelectEmitterStrict(t *testing.T) {
	_, err := SelectEmitter("text/html", jsonXML, true)
	if assert.Error(t, err) {
		assert.Equal(t, http.StatusNotAcceptable, restdata.Classify(err).HTTPStatus())
	}
	_, err = SelectEmitter("", nil, false)
	assert.Error(t, err)
}

func TestSelectParser(t *testing.T) {
	parsers := []Parser{FormParser{}, XMLParser{}, JSONParser{}}
	assert.Equal(t, JSONParser{}, SelectParser("application/json; charset=utf-8", parsers))
	assert.Equal(t, XMLParser{}, SelectParser("Application/XML", parsers))
	assert.Equal(t, FormParser{}, SelectParser("text/csv", parsers))
	assert.Equal(t, FormParser{}, SelectParser("", parsers))
	assert.Nil(t, SelectParser("", nil))
}

func TestStrictParser(t *testing.T) {
	parsers := []Parser{FormParser{}, JSONParser{}}
	p, err := StrictParser("application/json; charset=utf-8", parsers)
	assert.NoError(t, err)
	assert.Equal(t, JSONParser{}, p)

	p, err = StrictParser("", parsers)
	assert.NoError(t, err)
	assert.Equal(t, FormParser{}, p)

	_, err = StrictParser("text/csv", parsers)
	if assert.Error(t, err) {
		assert.Equal(t, restdata.UnsupportedMediaType, restdata.Classify(err).Kind)
		assert.Equal(t, http.StatusUnsupportedMediaType, restdata.Classify(err).HTTPStatus())
	}
}

func TestJSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	err := JSONEmitter{}.Emit(&buf, map[string]interface{}{
		"b": []interface{}{int64(1), "x", nil},
		"a": true,
	}, EmitContext{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":true,"b":[1,"x",null]}`, buf.String())
}

func TestJSONPEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONPEmitter{}.Emit(&buf, "x", EmitContext{}))
	assert.Equal(t, `callback("x")`, buf.String())

	buf.Reset()
	require.NoError(t, JSONPEmitter{}.Emit(&buf, int64(1), EmitContext{Callback: "cb"}))
	assert.Equal(t, `cb(1)`, buf.String())
}

func TestXMLEmitter(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Unix(1330837567, 0)
	err := XMLEmitter{}.Emit(&buf, map[string]interface{}{"name": "a&b"},
		EmitContext{Success: true, Version: "1.0", Time: ts})
	require.NoError(t, err)
	assert.Equal(t, "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"+
		`<response success="true" version="1.0" timestamp="1330837567">`+
		`<name>a&amp;b</name></response>`, buf.String())

	buf.Reset()
	require.NoError(t, XMLEmitter{}.Emit(&buf, nil, EmitContext{Time: ts}))
	assert.Contains(t, buf.String(), `success="false"`)
}

func TestTextEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TextEmitter{}.Emit(&buf, "OK", EmitContext{}))
	assert.Equal(t, "OK", buf.String())
	buf.Reset()
	require.NoError(t, TextEmitter{}.Emit(&buf, []interface{}{int64(1), "a"}, EmitContext{}))
	assert.Equal(t, "[1 a]", buf.String())
}

func TestCBORRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := map[string]interface{}{"name": "x", "tags": []interface{}{"a", "b"}}
	require.NoError(t, CBOREmitter{}.Emit(&buf, in, EmitContext{}))
	out, err := CBORParser{}.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BSONEmitter{}.Emit(&buf, map[string]interface{}{"name": "x"}, EmitContext{}))
	var doc map[string]interface{}
	require.NoError(t, bson.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "x", doc["name"])

	buf.Reset()
	require.NoError(t, BSONEmitter{}.Emit(&buf, "scalar", EmitContext{}))
	doc = nil
	require.NoError(t, bson.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "scalar", doc["result"])
}

func TestJSONParser(t *testing.T) {
	out, err := JSONParser{}.Parse(strings.NewReader(`{"name": "John", "n": {"k": [1]}}`))
	require.NoError(t, err)
	assert.Equal(t, "John", out["name"])
	assert.Equal(t, map[string]interface{}{"k": []interface{}{int64(1)}}, out["n"])

	out, err = JSONParser{}.Parse(strings.NewReader("  "))
	assert.NoError(t, err)
	assert.Empty(t, out)

	_, err = JSONParser{}.Parse(strings.NewReader(`{"name": `))
	if assert.Error(t, err) {
		assert.Equal(t, http.StatusBadRequest, restdata.Classify(err).HTTPStatus())
		assert.True(t, strings.HasPrefix(err.Error(), "JSON parse error - "))
	}
}

func TestJSONParserNumbers(t *testing.T) {
	// the parser keeps whatever numeric types the codec produces;
	// check only that they are numbers
	out, err := JSONParser{}.Parse(strings.NewReader(`{"i": 3, "f": 2.5}`))
	require.NoError(t, err)
	assert.IsType(t, 2.5, out["f"])
	_, isFloat := out["i"].(float64)
	_, isInt := out["i"].(int64)
	_, isUint := out["i"].(uint64)
	assert.True(t, isFloat || isInt || isUint)
}

func TestFormParser(t *testing.T) {
	out, err := FormParser{}.Parse(strings.NewReader("name=John&tag=a&tag=b"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name": "John",
		"tag":  []interface{}{"a", "b"},
	}, out)

	_, err = FormParser{}.Parse(strings.NewReader("%zz"))
	assert.Error(t, err)
}

func TestXMLParser(t *testing.T) {
	out, err := XMLParser{}.Parse(strings.NewReader(
		`<?xml version="1.0"?><book><name> Dune </name><tag>a</tag><tag>b</tag>` +
			`<author><name>Frank</name></author></book>`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":   "Dune",
		"tag":    []interface{}{"a", "b"},
		"author": map[string]interface{}{"name": "Frank"},
	}, out)

	out, err = XMLParser{}.Parse(strings.NewReader(`<empty/>`))
	assert.NoError(t, err)
	assert.Empty(t, out)

	_, err = XMLParser{}.Parse(strings.NewReader(`<book><name>`))
	assert.Error(t, err)
}

func TestMediaTypes(t *testing.T) {
	assert.Equal(t, []string{"application/json", "application/xml"}, MediaTypes(jsonXML))
	assert.Equal(t, []string{"application/x-www-form-urlencoded"}, ParserTypes([]Parser{FormParser{}}))
}
