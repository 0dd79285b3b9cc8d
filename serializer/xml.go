// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serializer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
)

// WriteXML renders a simple structure as XML fragments.  Lists become
// <items>, record envelopes are wrapped in a tag named after the last
// segment of their model label, map entries become tags named by
// their keys, and scalars are written as escaped text.  Map keys are
// written in sorted order; a key that is not an XML name becomes an
// <item> element with a key attribute.
func WriteXML(w io.Writer, simple interface{}) error {
	x := xmlWriter{w: w}
	x.value(simple)
	return x.err
}

// XML renders a simple structure with WriteXML and returns the
// result.
func XML(simple interface{}) string {
	var buf bytes.Buffer
	_ = WriteXML(&buf, simple)
	return buf.String()
}

type xmlWriter struct {
	w   io.Writer
	err error
}

func (x *xmlWriter) raw(s string) {
	if x.err == nil {
		_, x.err = io.WriteString(x.w, s)
	}
}

func (x *xmlWriter) text(s string) {
	if x.err == nil {
		x.err = xml.EscapeText(x.w, []byte(s))
	}
}

// open starts an element named name, or an <item key="name">
// element if name is not a usable XML name.
func (x *xmlWriter) open(name string) {
	if isXMLName(name) {
		x.raw("<" + name + ">")
		return
	}
	x.raw(`<item key="`)
	x.text(name)
	x.raw(`">`)
}

func (x *xmlWriter) close(name string) {
	if isXMLName(name) {
		x.raw("</" + name + ">")
	} else {
		x.raw("</item>")
	}
}

// isXMLName allows letters, digits, '_', '-' and '.', not starting
// with a digit, '-', '.' or "xml".
func isXMLName(name string) bool {
	if name == "" || strings.HasPrefix(strings.ToLower(name), "xml") {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

func (x *xmlWriter) value(v interface{}) {
	switch vv := v.(type) {
	case []interface{}:
		x.raw("<items>")
		for _, item := range vv {
			x.value(item)
		}
		x.raw("</items>")
	case map[string]interface{}:
		tag := ""
		if model, ok := vv["model"].(string); ok {
			tag = model[strings.LastIndex(model, ".")+1:]
		}
		if tag != "" {
			x.open(tag)
		}
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			x.open(k)
			x.value(vv[k])
			x.close(k)
		}
		if tag != "" {
			x.close(tag)
		}
	case nil:
	case string:
		x.text(vv)
	default:
		x.text(fmt.Sprint(vv))
	}
}
