// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package media

import (
	"fmt"
	"io"

	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/serializer"
	"github.com/ugorji/go/codec"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultCallback is the JSONP function name used when the request
// does not name one.
const DefaultCallback = "callback"

// JSONEmitter writes application/json.
type JSONEmitter struct{}

// MediaType returns "application/json".
func (JSONEmitter) MediaType() string { return restdata.JSONMediaType }

// Emit writes simple as JSON.
func (JSONEmitter) Emit(w io.Writer, simple interface{}, ctx EmitContext) error {
	return codec.NewEncoder(w, newJSONHandle()).Encode(simple)
}

// JSONPEmitter writes JSON wrapped in a function call, as
// text/javascript.
type JSONPEmitter struct{}

// MediaType returns "text/javascript".
func (JSONPEmitter) MediaType() string { return restdata.JSONPMediaType }

// Emit writes callback(json).
func (JSONPEmitter) Emit(w io.Writer, simple interface{}, ctx EmitContext) error {
	callback := ctx.Callback
	if callback == "" {
		callback = DefaultCallback
	}
	if _, err := io.WriteString(w, callback+"("); err != nil {
		return err
	}
	if err := (JSONEmitter{}).Emit(w, simple, ctx); err != nil {
		return err
	}
	_, err := io.WriteString(w, ")")
	return err
}

// XMLEmitter writes application/xml, wrapping the structure in a
// <response> document element.
type XMLEmitter struct{}

// MediaType returns "application/xml".
func (XMLEmitter) MediaType() string { return restdata.XMLMediaType }

// Emit writes the XML document.
func (XMLEmitter) Emit(w io.Writer, simple interface{}, ctx EmitContext) error {
	success := "true"
	if !ctx.Success {
		success = "false"
	}
	_, err := fmt.Fprintf(w,
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<response success=\"%s\" version=\"%s\" timestamp=\"%d\">",
		success, ctx.Version, ctx.Time.Unix())
	if err != nil {
		return err
	}
	if err = serializer.WriteXML(w, simple); err != nil {
		return err
	}
	_, err = io.WriteString(w, "</response>")
	return err
}

// TextEmitter writes text/plain using Go's default formatting.
type TextEmitter struct{}

// MediaType returns "text/plain".
func (TextEmitter) MediaType() string { return restdata.TextMediaType }

// Emit writes simple as text.  Strings are written unquoted.
func (TextEmitter) Emit(w io.Writer, simple interface{}, ctx EmitContext) error {
	var err error
	switch v := simple.(type) {
	case nil:
	case string:
		_, err = io.WriteString(w, v)
	default:
		_, err = fmt.Fprint(w, v)
	}
	return err
}

// CBOREmitter writes application/cbor.
type CBOREmitter struct{}

// MediaType returns "application/cbor".
func (CBOREmitter) MediaType() string { return restdata.CBORMediaType }

// Emit writes simple as CBOR.
func (CBOREmitter) Emit(w io.Writer, simple interface{}, ctx EmitContext) error {
	return codec.NewEncoder(w, newCBORHandle()).Encode(simple)
}

// BSONEmitter writes application/bson.  BSON documents must be maps;
// anything else is wrapped as {"result": simple}.
type BSONEmitter struct{}

// MediaType returns "application/bson".
func (BSONEmitter) MediaType() string { return restdata.BSONMediaType }

// Emit writes simple as a BSON document.
func (BSONEmitter) Emit(w io.Writer, simple interface{}, ctx EmitContext) error {
	doc, ok := simple.(map[string]interface{})
	if !ok {
		doc = map[string]interface{}{"result": simple}
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
