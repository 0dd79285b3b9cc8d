// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package record

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Adapter.Get() when no record has the
// requested primary key, including when the key cannot be parsed.
var ErrNotFound = errors.New("No such record")

// ErrMultiple is returned when a lookup that expects exactly one
// record finds more than one.
var ErrMultiple = errors.New("Multiple records returned")

// ErrNoSuchModel is returned by Store.Adapter() for an unknown model
// name.
type ErrNoSuchModel struct {
	Name string
}

func (err ErrNoSuchModel) Error() string {
	return fmt.Sprintf("No such model %v", err.Name)
}

// ErrNoSuchField is returned when a query or record access names a
// field the schema does not have.
type ErrNoSuchField struct {
	Model string
	Field string
}

func (err ErrNoSuchField) Error() string {
	return fmt.Sprintf("Model %v has no field %v", err.Model, err.Field)
}

// ValidationError collects per-field problems found while validating
// input data for a record.
type ValidationError struct {
	Fields map[string]string
}

// Add records a problem with a field.  The first message for a field
// wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, present := e.Fields[field]; !present {
		e.Fields[field] = message
	}
}

// Err returns e if any field had a problem, or nil.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for name, msg := range e.Fields {
			return fmt.Sprintf("Invalid %v: %v", name, msg)
		}
	}
	return fmt.Sprintf("Invalid data in %d fields", len(e.Fields))
}
