// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes the resources of a resource.Registry
// over HTTP.  The restclient package is a matching client, and the
// jsonrpc package routes RPC-style calls through the same Dispatcher.
//
// Request Pipeline
//
// Every request runs through the same fixed sequence of steps.  Any
// step may fail, and the failure is rendered as the response:
//
//     negotiate    choose the emitter from Accept:
//     method       the verb must be allowed (405) and have a handler (501)
//     authenticate run the resource's authenticator chain (401)
//     throttle     count the caller's requests (503, Retry-After:)
//     parse        decode the body of POST, PUT and PATCH (400)
//     resolve      load the records named in the path (404, 409)
//     owners       check nested records belong to their parents (403)
//     rights       run the authenticator's policy hook (403)
//     handle       call the verb handler
//     serialize    convert the result to a simple structure and emit it
//
// An OPTIONS request to a resource with AllowOptions set skips
// authentication and everything between throttling and the handler.
//
// HTTP Considerations
//
// Every response carries Allow: with the resource's verbs and
// "Vary: Authenticate, Accept".  Paginated collections add a Link:
// header with rel="next" and rel="previous" entries.  A successful
// POST answers 201 Created with a Location: header; a handler
// returning nil answers 204 No Content.  HEAD runs the GET handler
// and sends only the headers.
//
// Errors
//
// Classified errors (see restdata.Kind) are rendered through the
// negotiated emitter, so an XML client receives an XML error
// document.  Anything else, including a recovered panic, is an
// internal error: it is logged, sent as a raw text/plain 500, and
// passed to the Notifier.
//
// URL Scheme
//
// Each resource answers at two paths under the registry version,
// its collection and its item:
//
//     /1.0/author/
//     /1.0/author/{author}/
//     /1.0/author/{author}/book/
//     /1.0/author/{author}/book/{book}/
//
// The trailing slash is optional.  Several primary keys may be given
// as repeated query parameters, /1.0/author/?author=1&author=2, in
// which case PUT and DELETE act on all of them.
//
// Collections
//
// GET on a collection filters by any query parameter naming a model
// field (?name=John), excludes with a __not suffix
// (?name__not=John), and matches any of several values if the
// parameter repeats.  adr-sort=-name sorts, and adr-max=10 lowers
// the page size; the "adr-" prefix is the resource's DynPrefix.
// Pages are selected with ?page=N.
package restserver
