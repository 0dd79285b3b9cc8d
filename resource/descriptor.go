// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package resource describes REST resources.  A Descriptor is the
// static declaration of one endpoint: its name and place in the URL
// hierarchy, its record model, allowed verbs, codecs, authenticators,
// throttle and serialization options.  A Registry takes descriptors
// at startup, fills in inherited and computed options, and hands back
// the effective descriptors the dispatcher uses.
//
// Descriptors nest: a resource with Parent set lives under its
// parent's item URL, so a "book" under "author" answers at
// /author/{author}/book/{book}/ and its records must belong to the
// author named in the path.
package resource

import (
	"strings"

	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/media"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/serializer"
	"github.com/diffeo/go-restkit/throttle"
)

// HTTP verbs a resource can allow.
const (
	GET     = "GET"
	HEAD    = "HEAD"
	POST    = "POST"
	PUT     = "PUT"
	PATCH   = "PATCH"
	DELETE  = "DELETE"
	OPTIONS = "OPTIONS"
)

// DefaultDynPrefix prefixes the reserved query parameters, such as
// "adr-sort" and "adr-max".
const DefaultDynPrefix = "adr-"

// Unpaged, as LimitPerPage, turns pagination off.
const Unpaged = -1

// DefaultMaxBody is the largest request body accepted, in bytes.
const DefaultMaxBody = 10 << 20

// A HandlerFunc implements one verb of a resource.  The result is
// serialized as the response body; a *Response can set the status
// and extra headers.
type HandlerFunc func(req *Request) (interface{}, error)

// Descriptor declares a resource.  Zero fields are inherited, first
// from Base, then from the Registry's defaults.
type Descriptor struct {
	// Name is the resource's own URL segment.  It defaults to the
	// model name.
	Name string

	// Abstract descriptors only serve as a Base for others and
	// cannot be registered.
	Abstract bool

	// Base supplies options this descriptor does not set.
	Base *Descriptor

	// Parent is the resource this one nests under.  It must be
	// an effective descriptor returned by Registry.Register.
	Parent *Descriptor

	// URLParams adds "name/{name}" segments before the own
	// segment.
	URLParams []string

	// Prefix adds a literal segment before the own segment.
	Prefix string

	// URLName and URLPattern override the computed values.
	// URLPattern is a collection path template without the
	// leading version, like "author/{author}/book".
	URLName    string
	URLPattern string

	// AllowedMethods lists the verbs served; GET alone if empty.
	AllowedMethods []string

	// Model names the record model in the Registry's store.
	// Adapter may be given directly instead.
	Model   string
	Adapter record.Adapter

	// Emitters and Parsers are the codecs, first is the default.
	Emitters []media.Emitter
	Parsers  []media.Parser

	Authenticators []auth.Authenticator
	Throttle       throttle.Throttle

	// Options, Transforms and PostHook configure the serializer.
	Options    serializer.Options
	Transforms map[string]serializer.TransformFunc
	PostHook   serializer.PostHook

	// Format is "django" or "flat".
	Format string

	// MaxDepth limits nested record expansion.
	MaxDepth int

	// Handlers replaces the default implementation of verbs.
	Handlers map[string]HandlerFunc

	// LimitPerPage is the collection page size; Unpaged turns
	// pagination off.
	LimitPerPage int

	// Order is the default collection sort.
	Order []record.Order

	// AllowPublicAccess skips the parent ownership check.
	AllowPublicAccess bool

	// AllowOptions answers OPTIONS without authentication, for
	// CORS preflight.
	AllowOptions bool

	// StrictAccept answers 406 when no emitter matches Accept:
	// instead of using the default emitter.
	StrictAccept bool

	// StrictContentType answers 415 when no parser matches
	// Content-Type: instead of using the default parser.  A
	// request without Content-Type: still gets the default.
	StrictContentType bool

	// MaxBody limits the request body size in bytes.
	MaxBody int64

	// DisableLog keeps the resource out of the access log.
	DisableLog bool

	// DynPrefix prefixes reserved query parameters.
	DynPrefix string

	// Doc is free text for the API map.
	Doc string

	// Computed by the Registry.
	parents        []*Descriptor
	collectionPath string
	fields         []string
	format         serializer.Format
}

// Option alters a descriptor at registration time.
type Option func(*Descriptor)

// inherit fills zero fields of d from base.
func (d *Descriptor) inherit(base *Descriptor) {
	if base == nil {
		return
	}
	if d.URLParams == nil {
		d.URLParams = base.URLParams
	}
	if d.Prefix == "" {
		d.Prefix = base.Prefix
	}
	if len(d.AllowedMethods) == 0 {
		d.AllowedMethods = base.AllowedMethods
	}
	if d.Model == "" && d.Adapter == nil {
		d.Model, d.Adapter = base.Model, base.Adapter
	}
	if len(d.Emitters) == 0 {
		d.Emitters = base.Emitters
	}
	if len(d.Parsers) == 0 {
		d.Parsers = base.Parsers
	}
	if len(d.Authenticators) == 0 {
		d.Authenticators = base.Authenticators
	}
	if d.Throttle == nil {
		d.Throttle = base.Throttle
	}
	if d.Options.IsZero() {
		d.Options = base.Options
	}
	if d.Transforms == nil {
		d.Transforms = base.Transforms
	}
	if d.PostHook == nil {
		d.PostHook = base.PostHook
	}
	if d.Format == "" {
		d.Format = base.Format
	}
	if d.MaxDepth == 0 {
		d.MaxDepth = base.MaxDepth
	}
	if d.Handlers == nil {
		d.Handlers = base.Handlers
	}
	if d.LimitPerPage == 0 {
		d.LimitPerPage = base.LimitPerPage
	}
	if d.Order == nil {
		d.Order = base.Order
	}
	if d.DynPrefix == "" {
		d.DynPrefix = base.DynPrefix
	}
	if d.MaxBody == 0 {
		d.MaxBody = base.MaxBody
	}
	d.AllowPublicAccess = d.AllowPublicAccess || base.AllowPublicAccess
	d.AllowOptions = d.AllowOptions || base.AllowOptions
	d.StrictAccept = d.StrictAccept || base.StrictAccept
	d.StrictContentType = d.StrictContentType || base.StrictContentType
	d.DisableLog = d.DisableLog || base.DisableLog
}

// normalizeMethods uppercases and dedupes verbs, adding OPTIONS when
// allowOptions is set and HEAD when GET is allowed.
func normalizeMethods(methods []string, allowOptions bool) []string {
	if len(methods) == 0 {
		methods = []string{GET}
	}
	var result []string
	seen := make(map[string]bool)
	add := func(m string) {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" && !seen[m] {
			seen[m] = true
			result = append(result, m)
		}
	}
	for _, m := range methods {
		add(m)
	}
	if allowOptions {
		add(OPTIONS)
	}
	if seen[GET] {
		add(HEAD)
	}
	return result
}

// Allows says whether verb is served.
func (d *Descriptor) Allows(verb string) bool {
	for _, m := range d.AllowedMethods {
		if m == verb {
			return true
		}
	}
	return false
}

// Allow returns the value of the Allow: header.
func (d *Descriptor) Allow() string {
	return strings.Join(d.AllowedMethods, ", ")
}

// Parents returns the ancestor chain, root first.
func (d *Descriptor) Parents() []*Descriptor {
	return d.parents
}

// CollectionPath is the URL template of the resource's collection,
// like "author/{author}/book", without the version prefix.
func (d *Descriptor) CollectionPath() string {
	return d.collectionPath
}

// ItemPath is the URL template of one item, like
// "author/{author}/book/{book}".
func (d *Descriptor) ItemPath() string {
	return d.collectionPath + "/{" + d.Name + "}"
}

// Fields returns the model's field names, used to whitelist filters
// and sorting.
func (d *Descriptor) Fields() []string {
	return d.fields
}

// HasField says whether name is a filterable model field.
func (d *Descriptor) HasField(name string) bool {
	for _, f := range d.fields {
		if f == name {
			return true
		}
	}
	return false
}

// Schema returns the bound model's schema, or nil.
func (d *Descriptor) Schema() *record.Schema {
	if d.Adapter == nil {
		return nil
	}
	return d.Adapter.Schema()
}

// ParentKey is the field of this resource's records that holds the
// parent record's primary key, like "author_id".
func (d *Descriptor) ParentKey() string {
	if d.Parent == nil {
		return ""
	}
	return d.Parent.Name + "_id"
}

// SerializerFormat returns the parsed Format.
func (d *Descriptor) SerializerFormat() serializer.Format {
	return d.format
}

// NewSerializer creates a serializer configured for this resource.
func (d *Descriptor) NewSerializer(store record.Store) *serializer.Serializer {
	return &serializer.Serializer{
		Options:    d.Options,
		Format:     d.format,
		Transforms: d.Transforms,
		PostHook:   d.PostHook,
		Store:      store,
		MaxDepth:   d.MaxDepth,
	}
}

// PageSize is the effective page size; zero means unpaged.
func (d *Descriptor) PageSize() int {
	if d.LimitPerPage < 0 {
		return 0
	}
	return d.LimitPerPage
}
