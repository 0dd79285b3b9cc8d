// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP client for APIs served by the
// "restserver" package.  It reads the API map and addresses resources
// by URL name through the URI templates the map lists.
//
// Call New() with the versioned base URL of the service, whose "map/"
// resource must be registered; for instance,
//
//     c, err := restclient.New("http://localhost:5980/1.0/")
//     books, err := c.Resource("author-book")
//     err = books.Get(map[string]interface{}{"author": 1}, nil, &page)
package restclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-restkit/restdata"
)

// Client talks to one API.
type Client struct {
	// URL is the base URL of the API.
	URL *url.URL

	// HTTP is the client requests go through; nil means
	// http.DefaultClient.
	HTTP *http.Client

	// Header is added to every request, for instance to carry
	// credentials.
	Header http.Header

	// Map is the API map as of the last Refresh.
	Map restdata.APIMap
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.Header.Add(key, value) }
}

// New creates a client and fetches the API map.
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{URL: u, Header: make(http.Header)}
	for _, option := range options {
		option(c)
	}
	if err = c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

// Refresh fetches the API map again.
func (c *Client) Refresh() error {
	u, err := c.URL.Parse("map/")
	if err != nil {
		return err
	}
	m := restdata.APIMap{}
	if err = c.do("GET", u, nil, &m); err != nil {
		return err
	}
	c.Map = m
	return nil
}

// ErrUnknownResource is returned for a URL name missing from the API
// map.
type ErrUnknownResource struct {
	Name string
}

func (e ErrUnknownResource) Error() string {
	return fmt.Sprintf("unknown resource %q", e.Name)
}

// Resource finds a resource by URL name.
func (c *Client) Resource(urlName string) (*Resource, error) {
	info, ok := c.Map.Resources[urlName]
	if !ok {
		return nil, ErrUnknownResource{Name: urlName}
	}
	return &Resource{client: c, Info: info}, nil
}

// Resource is one resource of the API.
type Resource struct {
	client *Client
	Info   restdata.APIResource
}

// own returns the name of the resource's own template variable.
func (r *Resource) own() string {
	tmpl := r.Info.URL
	open := strings.LastIndex(tmpl, "{")
	end := strings.LastIndex(tmpl, "}")
	if open < 0 || end < open {
		return ""
	}
	return tmpl[open+1 : end]
}

// URL expands the resource's template.  Without a value for the
// resource's own variable the collection URL results.
func (r *Resource) URL(vars map[string]interface{}) (*url.URL, error) {
	tmpl := r.Info.URL
	if own := r.own(); own != "" {
		if v, ok := vars[own]; !ok || v == nil || v == "" {
			tmpl = tmpl[:strings.LastIndex(tmpl, "{")]
		}
	}
	return expand(r.client.URL, tmpl, vars)
}

// Allows reports whether the API map lists method for the resource.
func (r *Resource) Allows(method string) bool {
	for _, m := range r.Info.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Do performs method against the resource.  query, if non-nil, is
// added to the URL; in, if non-nil, is sent as JSON; out, if non-nil,
// receives the decoded response.
func (r *Resource) Do(method string, vars map[string]interface{}, query url.Values, in, out interface{}) error {
	u, err := r.URL(vars)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return r.client.do(method, u, in, out)
}

// Get retrieves the item or collection named by vars.
func (r *Resource) Get(vars map[string]interface{}, query url.Values, out interface{}) error {
	return r.Do("GET", vars, query, nil, out)
}

// Create posts a new item to the collection named by vars.
func (r *Resource) Create(vars map[string]interface{}, in, out interface{}) error {
	return r.Do("POST", vars, nil, in, out)
}

// Update puts new field values to the item named by vars.
func (r *Resource) Update(vars map[string]interface{}, in, out interface{}) error {
	return r.Do("PUT", vars, nil, in, out)
}

// Delete deletes the item named by vars.
func (r *Resource) Delete(vars map[string]interface{}) error {
	return r.Do("DELETE", vars, nil, nil, nil)
}
