// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package auth

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/record"
	"github.com/golang-jwt/jwt/v5"
)

// Anonymous accepts everybody, identified by remote address.
type Anonymous struct{}

// Name returns "anonymous".
func (Anonymous) Name() string { return "anonymous" }

// Authenticate identifies the caller by the host part of the remote
// address, or as "anonymous" if there is none.
func (a Anonymous) Authenticate(req *http.Request) (Identity, error) {
	addr := req.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		addr = "anonymous"
	}
	return Identity{Identifier: addr, Authenticator: a}, nil
}

func userIdentity(a Authenticator, user *User) Identity {
	return Identity{Identifier: user.Username, Authenticator: a, User: user}
}

// Basic checks HTTP basic authentication against a user store.
type Basic struct {
	Users UserStore
}

// Name returns "basic".
func (Basic) Name() string { return "basic" }

// Authenticate verifies the Authorization: Basic header, if present.
func (b Basic) Authenticate(req *http.Request) (Identity, error) {
	username, password, ok := req.BasicAuth()
	if !ok {
		return Identity{}, nil
	}
	user, err := Verify(b.Users, username, password)
	if err != nil {
		return Identity{}, err
	}
	return userIdentity(b, user), nil
}

// UserAuthenticator checks "username" and "password" request
// parameters, from the query string or a form body, against a user
// store.
type UserAuthenticator struct {
	Users UserStore
}

// Name returns "user".
func (UserAuthenticator) Name() string { return "user" }

// Authenticate verifies the username and password parameters.
func (u UserAuthenticator) Authenticate(req *http.Request) (Identity, error) {
	username := req.FormValue("username")
	if username == "" {
		return Identity{}, nil
	}
	user, err := Verify(u.Users, username, req.FormValue("password"))
	if err != nil {
		return Identity{}, err
	}
	return userIdentity(u, user), nil
}

// KeyParam is the request parameter AccessKey reads when there is no
// Authorization: header.
const KeyParam = "key"

// AccessKey accepts a key from the Authorization: header or the "key"
// parameter.
type AccessKey struct {
	Keys KeyStore
}

// Name returns "accesskey".
func (AccessKey) Name() string { return "accesskey" }

// Authenticate looks the key up in the key store.
func (a AccessKey) Authenticate(req *http.Request) (Identity, error) {
	key := strings.TrimSpace(req.Header.Get("Authorization"))
	if key == "" {
		key = req.FormValue(KeyParam)
	}
	if key == "" {
		return Identity{}, nil
	}
	user, err := a.Keys.LookupKey(key)
	if err == record.ErrNotFound {
		return Identity{}, ErrBadCredentials
	}
	if err != nil {
		return Identity{}, err
	}
	if !user.Active {
		return Identity{}, ErrBadCredentials
	}
	return userIdentity(a, user), nil
}

// Token accepts HS256 JSON Web Tokens as Authorization: Bearer
// credentials.  The token subject is the identifier.
type Token struct {
	Secret []byte

	// Clock validates expiry and stamps issued tokens; nil means
	// the wall clock.
	Clock clock.Clock
}

// Name returns "token".
func (Token) Name() string { return "token" }

func (t Token) clock() clock.Clock {
	if t.Clock == nil {
		return clock.New()
	}
	return t.Clock
}

// Issue signs a token for subject valid for ttl.
func (t Token) Issue(subject string, ttl time.Duration) (string, error) {
	now := t.clock().Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Authenticate validates a bearer token, if present.
func (t Token) Authenticate(req *http.Request) (Identity, error) {
	header := req.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Identity{}, nil
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(header[len(prefix):]), &claims,
		func(*jwt.Token) (interface{}, error) { return t.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock().Now),
	)
	if err != nil {
		return Identity{}, Rejection("Invalid token.")
	}
	if claims.Subject == "" {
		return Identity{}, Rejection("Token has no subject.")
	}
	return Identity{Identifier: claims.Subject, Authenticator: t}, nil
}
