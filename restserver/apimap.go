// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
)

// MapName is the URL name of the API map resource.
const MapName = "map"

// RegisterMap adds a "map" resource describing every resource of
// the registry, itself included.  It must be called before the
// registry is frozen.
func RegisterMap(r *resource.Registry, overrides ...resource.Option) (*resource.Descriptor, error) {
	return r.Register(resource.Descriptor{
		Name: MapName,
		Doc:  "Lists every resource of the API.",
		Handlers: map[string]resource.HandlerFunc{
			resource.GET: func(req *resource.Request) (interface{}, error) {
				return mapSimple(req.Registry.APIMap()), nil
			},
		},
	}, overrides...)
}

func stringList(values []string) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

// mapSimple converts the map to plain maps under its JSON names.
func mapSimple(m restdata.APIMap) map[string]interface{} {
	resources := make(map[string]interface{}, len(m.Resources))
	for name, res := range m.Resources {
		simple := map[string]interface{}{
			"url_name": res.URLName,
			"url":      res.URL,
			"methods":  stringList(res.Methods),
			"emitters": stringList(res.Emitters),
		}
		if len(res.Parsers) > 0 {
			simple["parsers"] = stringList(res.Parsers)
		}
		if res.Model != "" {
			simple["model"] = res.Model
		}
		if len(res.Fields) > 0 {
			simple["fields"] = stringList(res.Fields)
		}
		if len(res.Authenticators) > 0 {
			simple["authenticators"] = stringList(res.Authenticators)
		}
		if res.Parent != "" {
			simple["parent"] = res.Parent
		}
		if res.Doc != "" {
			simple["doc"] = res.Doc
		}
		resources[name] = simple
	}
	return map[string]interface{}{
		"version":   m.Version,
		"resources": resources,
	}
}
