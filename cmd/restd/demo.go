// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"time"

	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/media"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/serializer"
)

var authorSchema = &record.Schema{
	Namespace: "main",
	Name:      "author",
	Fields: []record.Field{
		{Name: "name", Type: record.String, Required: true},
		{Name: "active", Type: record.Boolean, Default: true},
	},
	Relations: []record.Relation{
		{Name: "books", Model: "book", Kind: record.ToMany, Key: "author_id"},
	},
}

var bookSchema = &record.Schema{
	Namespace: "main",
	Name:      "book",
	Fields: []record.Field{
		{Name: "name", Type: record.String, Required: true},
		{Name: "author_id", Type: record.Integer, Required: true},
		{Name: "price", Type: record.Decimal},
		{Name: "published", Type: record.DateTime},
	},
	Relations: []record.Relation{
		{Name: "author", Model: "author", Kind: record.ToOne, Key: "author_id"},
		{Name: "articles", Model: "article", Kind: record.ToMany, Key: "book_id"},
	},
}

var articleSchema = &record.Schema{
	Namespace: "main",
	Name:      "article",
	Fields: []record.Field{
		{Name: "name", Type: record.String, Required: true},
		{Name: "book_id", Type: record.Integer, Required: true},
		{Name: "body", Type: record.String, Hidden: true},
	},
	Relations: []record.Relation{
		{Name: "book", Model: "book", Kind: record.ToOne, Key: "book_id"},
	},
}

// schemas lists every model the daemon stores.
func schemas() []*record.Schema {
	return []*record.Schema{
		authorSchema, bookSchema, articleSchema,
		auth.UserSchema, auth.AccessKeySchema,
	}
}

var everyEmitter = []media.Emitter{
	media.JSONEmitter{},
	media.XMLEmitter{},
	media.JSONPEmitter{},
	media.TextEmitter{},
	media.CBOREmitter{},
	media.BSONEmitter{},
}

var everyParser = []media.Parser{
	media.FormParser{},
	media.JSONParser{},
	media.XMLParser{},
	media.CBORParser{},
}

// registerDemo adds the author/book/article hierarchy.  Reading
// authors and books is open to everybody; articles and every write
// need credentials.
func registerDemo(r *resource.Registry, credentials []auth.Authenticator) error {
	author, err := r.Register(resource.Descriptor{
		Model:          "author",
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		Emitters:       everyEmitter,
		Parsers:        everyParser,
		Authenticators: writers(credentials),
		Options:        serializer.Options{Include: []string{"books"}},
		Doc:            "Authors, with their books.",
	})
	if err != nil {
		return err
	}
	book, err := r.Register(resource.Descriptor{
		Model:          "book",
		Parent:         author,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		Emitters:       everyEmitter,
		Parsers:        everyParser,
		Authenticators: writers(credentials),
		Order:          []record.Order{{Field: "name"}},
		Doc:            "Books of one author.",
	})
	if err != nil {
		return err
	}
	_, err = r.Register(resource.Descriptor{
		Model:          "article",
		Parent:         book,
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		Authenticators: credentials,
		Options:        serializer.Options{Include: []string{"body"}},
		Doc:            "Articles about one book; needs credentials.",
	})
	return err
}

// readOnly lets anonymous callers through on safe verbs.
type readOnly struct{}

func (readOnly) Name() string { return "readonly" }

func (readOnly) Authenticate(req *http.Request) (auth.Identity, error) {
	switch req.Method {
	case "GET", "HEAD", "OPTIONS":
		return auth.Anonymous{}.Authenticate(req)
	}
	return auth.Identity{}, auth.Rejection("Authentication required to change resources.")
}

func writers(credentials []auth.Authenticator) []auth.Authenticator {
	result := append([]auth.Authenticator(nil), credentials...)
	return append(result, readOnly{})
}

// registerToken adds a "token" resource trading other credentials for
// a bearer token.
func registerToken(r *resource.Registry, token auth.Token, credentials []auth.Authenticator, ttl time.Duration) error {
	_, err := r.Register(resource.Descriptor{
		Name:           "token",
		AllowedMethods: []string{"POST"},
		Authenticators: credentials,
		DisableLog:     true,
		Doc:            "Issues a bearer token to an authenticated user.",
		Handlers: map[string]resource.HandlerFunc{
			resource.POST: func(req *resource.Request) (interface{}, error) {
				signed, err := token.Issue(req.Identity.Identifier, ttl)
				if err != nil {
					return nil, restdata.Wrap(restdata.Internal, err)
				}
				return resource.Created(map[string]interface{}{
					"token":   signed,
					"expires": int64(ttl / time.Second),
				}), nil
			},
		},
	})
	return err
}
