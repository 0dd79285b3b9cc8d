// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/media"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/serializer"
	"github.com/diffeo/go-restkit/throttle"
	"github.com/jtacoma/uritemplates"
	"github.com/sirupsen/logrus"
)

// DefaultLimitPerPage is the collection page size when neither the
// descriptor nor the registry defaults set one.
const DefaultLimitPerPage = 50

var (
	// ErrAbstract is returned registering an abstract descriptor.
	ErrAbstract = errors.New("abstract resources cannot be registered")

	// ErrNotAResource is returned registering a descriptor with
	// neither a name nor a model.
	ErrNotAResource = errors.New("resource needs a name or a model")

	// ErrFrozen is returned registering after Freeze.
	ErrFrozen = errors.New("registry is frozen")
)

// builtin holds the options every resource falls back to.
var builtin = Descriptor{
	AllowedMethods: []string{GET},
	Emitters:       []media.Emitter{media.JSONEmitter{}},
	Parsers:        []media.Parser{media.FormParser{}, media.XMLParser{}, media.JSONParser{}},
	Authenticators: []auth.Authenticator{auth.Anonymous{}},
	Throttle:       throttle.Null{},
	Format:         "django",
	MaxDepth:       serializer.DefaultMaxDepth,
	LimitPerPage:   DefaultLimitPerPage,
	DynPrefix:      DefaultDynPrefix,
	MaxBody:        DefaultMaxBody,
}

// Registry holds the resources of one API version.  Resources are
// registered at startup; after Freeze the registry is read-only and
// safe to share between goroutines without locking.
type Registry struct {
	// Version is the API version label and URL prefix, like "1.0".
	Version string

	// Prefix starts every route name, like "api".
	Prefix string

	// Store provides record adapters for descriptors naming a
	// Model, and resolves relations during serialization.
	Store record.Store

	// Defaults supplies options no descriptor sets.
	Defaults *Descriptor

	// Log receives registration warnings.
	Log logrus.FieldLogger

	lock      sync.Mutex
	frozen    bool
	resources map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry(version string, store record.Store) *Registry {
	return &Registry{
		Version:   version,
		Prefix:    "api",
		Store:     store,
		resources: make(map[string]*Descriptor),
	}
}

func (r *Registry) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// Register computes the effective form of d, with overrides applied,
// and adds it to the registry.  d itself is not changed.  Registering
// a second resource under the same URL name replaces the first with a
// warning.
func (r *Registry) Register(d Descriptor, overrides ...Option) (*Descriptor, error) {
	for _, o := range overrides {
		o(&d)
	}
	if d.Abstract {
		return nil, ErrAbstract
	}
	for base := d.Base; base != nil; base = base.Base {
		d.inherit(base)
	}
	d.inherit(r.Defaults)
	d.inherit(&builtin)
	d.Base = nil

	if d.Adapter == nil && d.Model != "" {
		if r.Store == nil {
			return nil, fmt.Errorf("resource %q: no store for model %q", d.Name, d.Model)
		}
		adapter, err := r.Store.Adapter(d.Model)
		if err != nil {
			return nil, err
		}
		d.Adapter = adapter
	}
	if schema := d.Schema(); schema != nil {
		d.Model = schema.Name
		if d.Name == "" {
			d.Name = schema.Name
		}
		d.fields = schema.FieldNames()
	}
	if d.Name == "" {
		return nil, ErrNotAResource
	}
	d.Name = strings.ToLower(d.Name)

	format, err := serializer.ParseFormat(d.Format)
	if err != nil {
		return nil, err
	}
	d.format = format
	d.AllowedMethods = normalizeMethods(d.AllowedMethods, d.AllowOptions)

	if d.Parent != nil {
		d.parents = append(append([]*Descriptor(nil), d.Parent.parents...), d.Parent)
	}
	if d.URLName == "" {
		d.URLName = strings.Join(d.nameParts(), "-")
	}
	if d.URLPattern != "" {
		d.collectionPath = strings.Trim(d.URLPattern, "/")
	} else {
		d.collectionPath = strings.Join(d.pathParts(), "/")
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if r.frozen {
		return nil, ErrFrozen
	}
	if old, present := r.resources[d.URLName]; present {
		r.logger().WithFields(logrus.Fields{
			"url_name": d.URLName,
			"old":      old.CollectionPath(),
			"new":      d.CollectionPath(),
		}).Warn("resource registered twice, replacing")
	}
	r.resources[d.URLName] = &d
	return &d, nil
}

// MustRegister is Register, panicking on error.
func (r *Registry) MustRegister(d Descriptor, overrides ...Option) *Descriptor {
	effective, err := r.Register(d, overrides...)
	if err != nil {
		panic(err)
	}
	return effective
}

func (d *Descriptor) nameParts() []string {
	var parts []string
	if d.Parent != nil {
		parts = append(parts, d.Parent.URLName)
	}
	if d.Prefix != "" {
		parts = append(parts, d.Prefix)
	}
	parts = append(parts, d.URLParams...)
	return append(parts, d.Name)
}

func (d *Descriptor) pathParts() []string {
	var parts []string
	if d.Parent != nil {
		parts = append(parts, d.Parent.ItemPath())
	}
	for _, p := range d.URLParams {
		parts = append(parts, p+"/{"+p+"}")
	}
	if d.Prefix != "" {
		parts = append(parts, d.Prefix)
	}
	return append(parts, d.Name)
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.frozen = true
}

// Frozen says whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.frozen
}

// Resource finds a resource by URL name.
func (r *Registry) Resource(urlName string) (*Descriptor, bool) {
	d, ok := r.resources[urlName]
	return d, ok
}

// Resources returns every resource, sorted by URL name.
func (r *Registry) Resources() []*Descriptor {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]*Descriptor, len(names))
	for i, name := range names {
		result[i] = r.resources[name]
	}
	return result
}

// Route is one resource's place in the router.
type Route struct {
	// Name is the route name, like "api-1.0-author-book".
	Name string

	// Collection and Item are gorilla/mux path templates, like
	// "/1.0/author/{author}/book/" and
	// "/1.0/author/{author}/book/{book}/".
	Collection string
	Item       string

	Resource *Descriptor
}

// NamePrefix is the prefix of every route name.
func (r *Registry) NamePrefix() string {
	return strings.Trim(r.Prefix+"-"+r.Version, "-")
}

func (r *Registry) versioned(path string) string {
	if r.Version == "" {
		return "/" + path + "/"
	}
	return "/" + r.Version + "/" + path + "/"
}

// Routes returns a route for every resource, sorted by URL name.
func (r *Registry) Routes() []Route {
	resources := r.Resources()
	routes := make([]Route, len(resources))
	for i, d := range resources {
		routes[i] = Route{
			Name:       r.NamePrefix() + "-" + d.URLName,
			Collection: r.versioned(d.CollectionPath()),
			Item:       r.versioned(d.ItemPath()),
			Resource:   d,
		}
	}
	return routes
}

// Template returns the RFC 6570 template for a resource's items.
func (r *Registry) Template(d *Descriptor) string {
	return r.versioned(d.ItemPath())
}

// URL builds the path of a resource.  vars fills the path
// parameters; if the resource's own parameter is missing the
// collection path results.
func (r *Registry) URL(d *Descriptor, vars map[string]string) (string, error) {
	template := r.Template(d)
	if vars[d.Name] == "" {
		template = r.versioned(d.CollectionPath())
	}
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return "", err
	}
	values := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		values[k] = v
	}
	return tmpl.Expand(values)
}

// APIMap describes every registered resource.
func (r *Registry) APIMap() restdata.APIMap {
	m := restdata.APIMap{
		Version:   r.Version,
		Resources: make(map[string]restdata.APIResource),
	}
	for _, d := range r.Resources() {
		res := restdata.APIResource{
			URLName:        d.URLName,
			URL:            r.Template(d),
			Methods:        d.AllowedMethods,
			Emitters:       media.MediaTypes(d.Emitters),
			Parsers:        media.ParserTypes(d.Parsers),
			Fields:         d.Fields(),
			Authenticators: auth.Names(d.Authenticators),
			Doc:            d.Doc,
		}
		if schema := d.Schema(); schema != nil {
			res.Model = schema.Label()
		}
		if d.Parent != nil {
			res.Parent = d.Parent.URLName
		}
		m.Resources[d.URLName] = res
	}
	return m
}
