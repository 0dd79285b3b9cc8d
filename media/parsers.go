// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package media

import (
	"bytes"
	"encoding/xml"
	"io"
	"io/ioutil"
	"net/url"
	"strings"

	"github.com/diffeo/go-restkit/restdata"
	"github.com/ugorji/go/codec"
)

// readBody reads a whole body, reporting whether it was empty.
func readBody(r io.Reader) ([]byte, bool, error) {
	if r == nil {
		return nil, true, nil
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return data, len(bytes.TrimSpace(data)) == 0, nil
}

// JSONParser reads application/json.  The body must be a JSON object;
// an empty body parses as an empty map.
type JSONParser struct{}

// MediaType returns "application/json".
func (JSONParser) MediaType() string { return restdata.JSONMediaType }

// Parse decodes a JSON object.
func (JSONParser) Parse(r io.Reader) (map[string]interface{}, error) {
	data, empty, err := readBody(r)
	if err != nil || empty {
		return map[string]interface{}{}, err
	}
	var result map[string]interface{}
	err = codec.NewDecoderBytes(data, newJSONHandle()).Decode(&result)
	if err != nil {
		return nil, restdata.ErrBadRequest("JSON parse error - %v", err)
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	return normalize(result).(map[string]interface{}), nil
}

// CBORParser reads application/cbor.  The body must be a CBOR map.
type CBORParser struct{}

// MediaType returns "application/cbor".
func (CBORParser) MediaType() string { return restdata.CBORMediaType }

// Parse decodes a CBOR map.
func (CBORParser) Parse(r io.Reader) (map[string]interface{}, error) {
	data, empty, err := readBody(r)
	if err != nil || empty {
		return map[string]interface{}{}, err
	}
	var result map[string]interface{}
	err = codec.NewDecoderBytes(data, newCBORHandle()).Decode(&result)
	if err != nil {
		return nil, restdata.ErrBadRequest("CBOR parse error - %v", err)
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	return normalize(result).(map[string]interface{}), nil
}

// FormParser reads application/x-www-form-urlencoded.  Single values
// become strings; repeated keys become lists of strings.
type FormParser struct{}

// MediaType returns "application/x-www-form-urlencoded".
func (FormParser) MediaType() string { return restdata.FormMediaType }

// Parse decodes a form body.
func (FormParser) Parse(r io.Reader) (map[string]interface{}, error) {
	data, _, err := readBody(r)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, restdata.ErrBadRequest("Form parse error - %v", err)
	}
	return FormValues(values), nil
}

// FormValues converts url.Values the way FormParser does.
func FormValues(values url.Values) map[string]interface{} {
	result := make(map[string]interface{}, len(values))
	for k, v := range values {
		if len(v) == 1 {
			result[k] = v[0]
		} else {
			list := make([]interface{}, len(v))
			for i, s := range v {
				list[i] = s
			}
			result[k] = list
		}
	}
	return result
}

// XMLParser reads application/xml of the form
//
//     <anything><name>John</name><tag>a</tag><tag>b</tag></anything>
//
// The document element's children become keys.  Elements with
// children become nested maps; repeated elements become lists.
type XMLParser struct{}

// MediaType returns "application/xml".
func (XMLParser) MediaType() string { return restdata.XMLMediaType }

// Parse decodes an XML document.
func (XMLParser) Parse(r io.Reader) (map[string]interface{}, error) {
	data, empty, err := readBody(r)
	if err != nil || empty {
		return map[string]interface{}{}, err
	}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, restdata.ErrBadRequest("XML parse error - %v", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			value, err := xmlElement(decoder, start)
			if err != nil {
				return nil, restdata.ErrBadRequest("XML parse error - %v", err)
			}
			if m, ok := value.(map[string]interface{}); ok {
				return m, nil
			}
			return map[string]interface{}{}, nil
		}
	}
}

// xmlElement reads the content of an element whose start tag has
// already been consumed.
func xmlElement(decoder *xml.Decoder, start xml.StartElement) (interface{}, error) {
	var (
		text     strings.Builder
		children map[string]interface{}
	)
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			value, err := xmlElement(decoder, t)
			if err != nil {
				return nil, err
			}
			if children == nil {
				children = make(map[string]interface{})
			}
			name := t.Name.Local
			switch existing := children[name].(type) {
			case nil:
				children[name] = value
			case []interface{}:
				children[name] = append(existing, value)
			default:
				children[name] = []interface{}{existing, value}
			}
		case xml.EndElement:
			if children != nil {
				return children, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}
