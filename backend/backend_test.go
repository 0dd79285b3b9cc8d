// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package backend

import (
	"flag"
	"testing"

	"github.com/diffeo/go-restkit/record/memory"
	"github.com/diffeo/go-restkit/record/recordtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	var b Backend
	require.NoError(t, b.Set("memory"))
	assert.Equal(t, Backend{Implementation: "memory"}, b)
	assert.Equal(t, "memory", b.String())

	require.NoError(t, b.Set("postgres://user@localhost/db?sslmode=disable"))
	assert.Equal(t, "postgres", b.Implementation)
	assert.Equal(t, "//user@localhost/db?sslmode=disable", b.Address)
	assert.Equal(t, "postgres://user@localhost/db?sslmode=disable", b.String())

	assert.Error(t, b.Set(""))
	assert.Error(t, b.Set("mongo:localhost"))
	assert.Equal(t, "postgres", b.Implementation)
}

func TestFlag(t *testing.T) {
	b := Backend{Implementation: "memory"}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&b, "backend", "impl:address of record storage")
	require.NoError(t, fs.Parse([]string{"-backend", "postgres:host=localhost"}))
	assert.Equal(t, Backend{Implementation: "postgres", Address: "host=localhost"}, b)
}

func TestMemoryStore(t *testing.T) {
	b := Backend{Implementation: "memory"}
	store, err := b.Store(recordtest.Schemas())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	_, err = store.Adapter("author")
	assert.NoError(t, err)
	assert.Nil(t, DB(store))

	b.Implementation = "bogus"
	_, err = b.Store(nil)
	assert.Error(t, err)
}
