// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a record store
// based on command-line flags.
package backend

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/record/memory"
	"github.com/diffeo/go-restkit/record/postgres"
	migrate "github.com/rubenv/sql-migrate"
)

// Implementations lists the known implementation names.
var Implementations = []string{"memory", "postgres"}

// Backend describes user-visible parameters to store records.  This
// implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{"memory", ""}
//         flag.Var(&backend, "backend", "impl:address of record storage")
//         flag.Parse()
//         store, err := backend.Store(schemas)
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// Store creates a new record store holding schemas.  This generally
// should be only called once.  If the backend has in-process state,
// such as a database connection pool or an in-memory store, calling
// this multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to this
// will create multiple independent worlds.
//
// For "postgres", tables are created for the schemas and extra
// migrations are applied.  The memory store ignores extra.
func (b *Backend) Store(schemas []*record.Schema, extra ...*migrate.Migration) (record.Store, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(schemas...), nil
	case "postgres":
		return postgres.Open(b.Address, schemas, extra...)
	default:
		return nil, fmt.Errorf("unknown record backend %q", b.Implementation)
	}
}

// DB returns the connection pool behind a store, if it has one.
func DB(store record.Store) *sql.DB {
	if withDB, ok := store.(interface{ DB() *sql.DB }); ok {
		return withDB.DB()
	}
	return nil
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither this
// nor Store() attempts to validate the b.Address part of the string
// before connecting.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	impl, address := parts[0], ""
	if len(parts) == 2 {
		address = parts[1]
	}
	for _, known := range Implementations {
		if impl == known {
			b.Implementation = impl
			b.Address = address
			return nil
		}
	}
	return fmt.Errorf("unknown record backend %q", impl)
}
