// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package record

import (
	"sort"
)

// FieldType identifies how a field's values are stored and converted.
type FieldType int

const (
	// String fields hold Go strings.
	String FieldType = iota

	// Integer fields hold int64.
	Integer

	// Float fields hold float64.
	Float

	// Decimal fields hold *big.Rat.  They are fixed-point in the
	// store but go over the wire as floats.
	Decimal

	// Boolean fields hold bool.
	Boolean

	// DateTime fields hold time.Time.
	DateTime
)

var fieldTypeNames = map[FieldType]string{
	String:   "string",
	Integer:  "integer",
	Float:    "float",
	Decimal:  "decimal",
	Boolean:  "boolean",
	DateTime: "datetime",
}

func (t FieldType) String() string {
	return fieldTypeNames[t]
}

// Field describes one stored field of a record type.
type Field struct {
	// Name is the field name, as it appears in wire data and
	// queries.
	Name string

	// Type selects the converter and storage type.
	Type FieldType

	// Required fields must be present when a record is created.
	Required bool

	// Default, if non-nil, is used when creating a record without
	// this field.
	Default interface{}

	// Hidden fields are stored and filterable but not part of the
	// default serialized field set.
	Hidden bool
}

// RelationKind says which side of a foreign key a Relation is on.
type RelationKind int

const (
	// ToOne relations hold the related record's primary key in a
	// local field, e.g. book.author via "author_id".
	ToOne RelationKind = iota

	// ToMany relations find related records whose Key field holds
	// this record's primary key, e.g. author.books via book's
	// "author_id".
	ToMany
)

// Relation is a named link from one record type to another.
type Relation struct {
	Name  string
	Model string
	Kind  RelationKind
	Key   string
}

// Schema describes a record type.  Schemas are built once and never
// changed afterwards.
type Schema struct {
	// Namespace groups related models, like an application name.
	Namespace string

	// Name is the model name; resources bound to this model are
	// named after it by default.
	Name string

	Fields    []Field
	Relations []Relation
}

// Label returns "namespace.name", the model label used in record
// envelopes.
func (s *Schema) Label() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// Field finds a field by name.  "pk" and "id" name the primary key,
// which is an implicit Integer field.
func (s *Schema) Field(name string) (Field, bool) {
	if name == "pk" || name == "id" {
		return Field{Name: "id", Type: Integer}, true
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation finds a relation by name.
func (s *Schema) Relation(name string) (Relation, bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// FieldNames returns the names of every stored field, including "id",
// in declaration order.  These are the names that may be used to
// filter and sort.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields)+1)
	names = append(names, "id")
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// HasField says whether name is a stored field (or the primary key).
func (s *Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// SerializableFields returns the default serialized field set: every
// non-hidden stored field other than the primary key, sorted.
func (s *Schema) SerializableFields() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Hidden {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Converter returns the string-to-value converter for a field, or an
// ErrNoSuchField error.
func (s *Schema) Converter(name string) (Converter, error) {
	f, ok := s.Field(name)
	if !ok {
		return nil, ErrNoSuchField{Model: s.Label(), Field: name}
	}
	return ConverterFor(f.Type), nil
}

// Validate cleans input data for a record.  Each known field is
// coerced to its stored type; unknown keys are dropped.  Unless
// partial is set, required fields without a default must be present,
// and defaults are filled in.  Problems are reported as a single
// *ValidationError.
func (s *Schema) Validate(data map[string]interface{}, partial bool) (map[string]interface{}, error) {
	verr := &ValidationError{}
	result := make(map[string]interface{})
	for _, f := range s.Fields {
		raw, present := data[f.Name]
		if !present || raw == nil {
			if partial && !present {
				continue
			}
			if partial {
				if f.Required {
					verr.Add(f.Name, "This field is required.")
				} else {
					result[f.Name] = nil
				}
				continue
			}
			if f.Default != nil {
				result[f.Name] = f.Default
			} else if f.Required {
				verr.Add(f.Name, "This field is required.")
			}
			continue
		}
		value, err := Coerce(f.Type, raw)
		if err != nil {
			verr.Add(f.Name, err.Error())
			continue
		}
		result[f.Name] = value
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
