// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver and restclient packages: the closed error taxonomy every
// request can end in, the error body, and the media types the system
// knows how to speak.
//
// Error Rendering
//
// A request that fails with a classified error (anything implementing
// ErrorStatus, normally a *Error) gets a body built from
// ErrorResponse, passed through the same emitter a successful
// response would have used.  A client asking for XML gets XML:
//
//     <?xml version="1.0" encoding="utf-8"?>
//     <response success="false" version="1.0" timestamp="...">
//       <error>NotFound</error><message>Resource not found.</message>
//     </response>
//
// Unclassified errors are Internal and are sent as raw text/plain,
// without negotiation.
//
// API Map
//
// The "map" resource returns a list of APIResource objects, one per
// registered resource.  Each has a URI template with the resource's
// path parameters in curly braces, which restclient expands.
package restdata

// Media types the stock emitters and parsers use.
const (
	JSONMediaType  = "application/json"
	JSONPMediaType = "text/javascript"
	XMLMediaType   = "application/xml"
	TextMediaType  = "text/plain"
	HTMLMediaType  = "text/html"
	CBORMediaType  = "application/cbor"
	BSONMediaType  = "application/bson"
	FormMediaType  = "application/x-www-form-urlencoded"
)

// APIResource describes one registered resource in the API map.
type APIResource struct {
	// URLName is the unique registry key, e.g. "author-book".
	URLName string `json:"url_name"`

	// URL is an RFC 6570 URI template for the item form of the
	// resource, e.g. "/1.0/author/{author}/book/{book}/".  Leaving
	// the last variable empty addresses the collection.
	URL string `json:"url"`

	// Methods are the allowed HTTP verbs.
	Methods []string `json:"methods"`

	// Emitters are the response media types, default first.
	Emitters []string `json:"emitters"`

	// Parsers are the request body media types, default first.
	Parsers []string `json:"parsers,omitempty"`

	// Model is the bound record label, "namespace.name", if any.
	Model string `json:"model,omitempty"`

	// Fields lists the bound record's field names.
	Fields []string `json:"fields,omitempty"`

	// Authenticators names the auth chain strategies in order.
	Authenticators []string `json:"authenticators,omitempty"`

	// Parent is the URL name of the parent resource, if any.
	Parent string `json:"parent,omitempty"`

	// Doc is a free-text description.
	Doc string `json:"doc,omitempty"`
}

// APIMap is the full response of the map resource, keyed by URL name.
type APIMap struct {
	Version   string                 `json:"version"`
	Resources map[string]APIResource `json:"resources"`
}

// RPCRequest is the envelope the RPC bridge accepts.
type RPCRequest struct {
	Method   string                 `json:"method" mapstructure:"method"`
	Params   map[string]interface{} `json:"params,omitempty" mapstructure:"params"`
	Data     map[string]interface{} `json:"data,omitempty" mapstructure:"data"`
	Headers  map[string]string      `json:"headers,omitempty" mapstructure:"headers"`
	Callback string                 `json:"callback,omitempty" mapstructure:"callback"`
}
