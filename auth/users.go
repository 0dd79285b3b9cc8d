// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package auth

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/record"
	"github.com/satori/go.uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an account in a user store.
type User struct {
	ID       int64  `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Active   bool   `mapstructure:"active"`
}

// UserStore finds user accounts.
type UserStore interface {
	// Lookup returns the named user, or record.ErrNotFound.
	Lookup(username string) (*User, error)
}

// KeyStore maps access keys to users.
type KeyStore interface {
	// LookupKey returns the user owning key, or
	// record.ErrNotFound.
	LookupKey(key string) (*User, error)
}

// ErrBadCredentials is the rejection for a wrong username, password
// or key, or an inactive account.
var ErrBadCredentials = Rejection("Invalid credentials.")

// Verify checks a username and password against a store.  Bad
// credentials are reported as ErrBadCredentials.
func Verify(users UserStore, username, password string) (*User, error) {
	user, err := users.Lookup(username)
	if err == record.ErrNotFound {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	if err != nil || !user.Active {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// UserSchema is the record schema RecordUsers stores accounts in.
// The password field holds a bcrypt hash.
var UserSchema = &record.Schema{
	Namespace: "auth",
	Name:      "user",
	Fields: []record.Field{
		{Name: "username", Type: record.String, Required: true},
		{Name: "password", Type: record.String, Required: true, Hidden: true},
		{Name: "active", Type: record.Boolean, Default: true},
	},
}

// AccessKeySchema is the record schema RecordKeys stores keys in.
var AccessKeySchema = &record.Schema{
	Namespace: "auth",
	Name:      "accesskey",
	Fields: []record.Field{
		{Name: "key", Type: record.String, Required: true},
		{Name: "user_id", Type: record.Integer, Required: true},
		{Name: "created", Type: record.DateTime},
	},
	Relations: []record.Relation{
		{Name: "user", Model: "user", Kind: record.ToOne, Key: "user_id"},
	},
}

// RecordUsers is a UserStore kept in a record adapter for UserSchema.
type RecordUsers struct {
	Adapter record.Adapter

	// Cost is the bcrypt cost for new passwords; zero means
	// bcrypt.DefaultCost.
	Cost int
}

func decodeUser(r *record.Record) (*User, error) {
	var user User
	if err := r.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Lookup finds a user by name.
func (u RecordUsers) Lookup(username string) (*User, error) {
	r, err := record.GetOne(u.Adapter, record.Query{
		Filters: []record.Filter{record.Eq("username", username)},
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(r)
}

// Add creates an active user with a hashed password.
func (u RecordUsers) Add(username, password string) (*User, error) {
	cost := u.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, err
	}
	r, err := record.Create(u.Adapter, map[string]interface{}{
		"username": username,
		"password": string(hash),
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(r)
}

// SetActive enables or disables an account.
func (u RecordUsers) SetActive(username string, active bool) error {
	r, err := record.GetOne(u.Adapter, record.Query{
		Filters: []record.Filter{record.Eq("username", username)},
	})
	if err != nil {
		return err
	}
	_, err = record.Update(u.Adapter, r, map[string]interface{}{"active": active})
	return err
}

// RecordKeys is a KeyStore kept in a record adapter for
// AccessKeySchema, owned by accounts in Users.
type RecordKeys struct {
	Keys  record.Adapter
	Users record.Adapter

	// Clock stamps new keys; nil means the wall clock.
	Clock clock.Clock
}

// NewKey returns a fresh random key: a version 4 UUID in hex.
func NewKey() string {
	u := uuid.NewV4()
	return hex.EncodeToString(u.Bytes())
}

// Generate creates a new key for a user.
func (k RecordKeys) Generate(user *User) (string, error) {
	c := k.Clock
	if c == nil {
		c = clock.New()
	}
	key := NewKey()
	_, err := record.Create(k.Keys, map[string]interface{}{
		"key":     key,
		"user_id": user.ID,
		"created": c.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// LookupKey finds the user owning key.
func (k RecordKeys) LookupKey(key string) (*User, error) {
	r, err := record.GetOne(k.Keys, record.Query{
		Filters: []record.Filter{record.Eq("key", key)},
	})
	if err != nil {
		return nil, err
	}
	owner, err := k.Users.Get(pkOf(r.Get("user_id")))
	if err != nil {
		return nil, err
	}
	return decodeUser(owner)
}

func pkOf(v interface{}) string {
	pk, err := record.Coerce(record.Integer, v)
	if n, ok := pk.(int64); ok && err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}
