// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package auth identifies the caller of a REST request.  A resource
// declares an ordered list of Authenticator strategies; Chain tries
// them in turn and the first one that produces a non-empty identifier
// wins.  The strategy that won stays attached to the Identity, and if
// it also implements RightsChecker it gets to veto access to the
// resolved resources.
package auth

import (
	"net/http"

	"github.com/diffeo/go-restkit/restdata"
)

// DefaultMessage is the 401 message when no strategy gives a reason.
const DefaultMessage = "Authorization required."

// Identity is the caller a request runs as.
type Identity struct {
	// Identifier names the caller.  It is also the throttle key
	// and the access log's caller column.
	Identifier string

	// Authenticator is the strategy that produced the identity.
	Authenticator Authenticator

	// User is the authenticated user, for strategies backed by a
	// user store.
	User *User
}

// IsZero returns true if the identity has no identifier.
func (id Identity) IsZero() bool {
	return id.Identifier == ""
}

// An Authenticator is one strategy for identifying a caller.
//
// Authenticate returns an Identity with an empty Identifier if the
// request does not carry this strategy's credentials, or a Rejection
// if it carries bad ones.  Any other error aborts the chain.
type Authenticator interface {
	Name() string
	Authenticate(req *http.Request) (Identity, error)
}

// RightsChecker is an optional Authenticator policy hook, consulted
// after the request's path resources are resolved.  resources maps
// resource names to a *record.Record or []*record.Record.  Returning a
// Rejection denies access.
type RightsChecker interface {
	CheckRights(id Identity, resources map[string]interface{}) error
}

// Rejection is the reason a strategy refused a request.
type Rejection string

func (r Rejection) Error() string {
	return string(r)
}

// Chain authenticates req against authenticators in order.  The first
// strategy to return a non-empty identifier wins and no later strategy
// is consulted.  If none does, the result is an Unauthorized error
// carrying the last rejection reason.  An empty list behaves like
// Anonymous.
func Chain(req *http.Request, authenticators []Authenticator) (Identity, error) {
	if len(authenticators) == 0 {
		authenticators = []Authenticator{Anonymous{}}
	}
	message := DefaultMessage
	for _, a := range authenticators {
		id, err := a.Authenticate(req)
		if rejection, ok := err.(Rejection); ok {
			message = string(rejection)
			continue
		}
		if err != nil {
			return Identity{}, err
		}
		if id.IsZero() {
			continue
		}
		if id.Authenticator == nil {
			id.Authenticator = a
		}
		return id, nil
	}
	return Identity{}, restdata.ErrUnauthorized(message)
}

// CheckRights runs the winning strategy's policy hook, if it has one.
// Strategies without a hook permit everything.
func CheckRights(id Identity, resources map[string]interface{}) error {
	checker, ok := id.Authenticator.(RightsChecker)
	if !ok {
		return nil
	}
	err := checker.CheckRights(id, resources)
	if rejection, ok := err.(Rejection); ok {
		return restdata.ErrForbidden("Access forbidden. %s", string(rejection))
	}
	return err
}

// Names lists the strategy names, for the API map.
func Names(authenticators []Authenticator) []string {
	names := make([]string, len(authenticators))
	for i, a := range authenticators {
		names[i] = a.Name()
	}
	return names
}
