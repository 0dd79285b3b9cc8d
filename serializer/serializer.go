// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package serializer converts arbitrary Go values into "simple"
// structures: trees of strings, numbers, booleans, nil,
// []interface{} and map[string]interface{}.  Emitters only ever see
// simple structures, so every wire format renders the same tree.
//
// Records become envelopes
//
//     {"model": "main.book", "pk": "1", "fields": {"name": "Dune"}}
//
// or, in the Flat format, {"id": "1", "name": "Dune"}.  Which fields
// appear is controlled by Options, and individual fields can be
// computed by a TransformFunc.  Relations are only expanded when named
// in Options.Include (or Fields) and resolved through a record.Store.
package serializer

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/restdata"
)

// DefaultMaxDepth is the record nesting limit used when
// Serializer.MaxDepth is zero.
const DefaultMaxDepth = 8

// Format selects the wire shape of records.
type Format int

const (
	// Django renders records as {model, pk, fields} envelopes.
	Django Format = iota

	// Flat renders records as a single map with "id" beside the
	// fields.
	Flat
)

// ParseFormat converts a configuration string ("django", "flat" or
// "simple") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "django":
		return Django, nil
	case "flat", "simple":
		return Flat, nil
	}
	return Django, fmt.Errorf("unknown serialization format %q", s)
}

// Options controls which fields of a record are serialized.
type Options struct {
	// Fields, if non-empty, is exactly the set of fields
	// serialized; Include and Exclude are ignored.
	Fields []string `yaml:"fields,omitempty"`

	// Include adds names to the schema's default field set.  These
	// may be relations or transform names.
	Include []string `yaml:"include,omitempty"`

	// Exclude removes names from the default field set.
	Exclude []string `yaml:"exclude,omitempty"`

	// Related gives the options used for the named relations.
	Related map[string]Options `yaml:"related,omitempty"`
}

// IsZero says whether no option is set.
func (o Options) IsZero() bool {
	return len(o.Fields) == 0 && len(o.Include) == 0 &&
		len(o.Exclude) == 0 && len(o.Related) == 0
}

// FieldSet returns the names to serialize for a schema, sorted.
func (o Options) FieldSet(schema *record.Schema) []string {
	if len(o.Fields) > 0 {
		return uniqueSorted(o.Fields)
	}
	set := make(map[string]bool)
	for _, name := range schema.SerializableFields() {
		set[name] = true
	}
	for _, name := range o.Include {
		set[name] = true
	}
	for _, name := range o.Exclude {
		delete(set, name)
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func uniqueSorted(in []string) []string {
	set := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !set[s] {
			set[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// TransformFunc computes the serialized value of one field of a
// record.  Its result is used verbatim.
type TransformFunc func(r *record.Record, s *Serializer) (interface{}, error)

// PostHook rewrites the whole simple structure produced for value.
type PostHook func(value, simple interface{}, s *Serializer) (interface{}, error)

// Simplifier is implemented by values that know their own simple
// form, such as paginated results.  The returned value is itself
// passed through the serializer with the active options.
type Simplifier interface {
	ToSimple(s *Serializer) (interface{}, error)
}

// Serializer converts values to simple structures.  A zero
// Serializer is usable; it renders records in Django format with
// default options and cannot expand relations.
type Serializer struct {
	// Options applies to top-level records, including records in
	// top-level collections and pages.
	Options Options

	Format Format

	// Transforms computes fields by name.
	Transforms map[string]TransformFunc

	// PostHook, if set, rewrites the final structure.
	PostHook PostHook

	// Store resolves relations.
	Store record.Store

	// MaxDepth limits nested record expansion.
	MaxDepth int
}

// Serialize converts value to a simple structure using the
// serializer's options, then applies the post-hook.
func (s *Serializer) Serialize(value interface{}) (interface{}, error) {
	simple, err := s.ToSimple(value)
	if err != nil {
		return nil, err
	}
	if s.PostHook != nil {
		return s.PostHook(value, simple, s)
	}
	return simple, nil
}

// ToSimple converts value to a simple structure using the
// serializer's options, without the post-hook.
func (s *Serializer) ToSimple(value interface{}) (interface{}, error) {
	return s.toSimple(value, s.Options, 0)
}

// ToSimpleWith converts value using explicit options.  Transforms can
// use this to serialize related values.
func (s *Serializer) ToSimpleWith(value interface{}, options Options) (interface{}, error) {
	return s.toSimple(value, options, 0)
}

func (s *Serializer) maxDepth() int {
	if s.MaxDepth > 0 {
		return s.MaxDepth
	}
	return DefaultMaxDepth
}

func (s *Serializer) toSimple(value interface{}, options Options, depth int) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	case *big.Rat:
		if v == nil {
			return nil, nil
		}
		f, _ := v.Float64()
		return f, nil
	case *big.Float:
		if v == nil {
			return nil, nil
		}
		f, _ := v.Float64()
		return f, nil
	case time.Time:
		return DateTime(v), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return DateTime(*v), nil
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, item := range v {
			simple, err := s.toSimple(item, options, depth)
			if err != nil {
				return nil, err
			}
			result[k] = simple
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			simple, err := s.toSimple(item, options, depth)
			if err != nil {
				return nil, err
			}
			result[i] = simple
		}
		return result, nil
	case Simplifier:
		inner, err := v.ToSimple(s)
		if err != nil {
			return nil, err
		}
		return s.toSimple(inner, options, depth)
	case *record.Record:
		if v == nil {
			return nil, nil
		}
		return s.toSimpleRecord(v, options, depth+1)
	}
	return s.toSimpleReflect(value, options, depth)
}

// toSimpleReflect handles the generic collection kinds.
func (s *Serializer) toSimpleReflect(value interface{}, options Options, depth int) (interface{}, error) {
	rv := reflect.ValueOf(value)
	if stringer, ok := value.(fmt.Stringer); ok && rv.Kind() != reflect.Map && rv.Kind() != reflect.Slice {
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, nil
		}
		return stringer.String(), nil
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		result := make(map[string]interface{}, rv.Len())
		for _, key := range rv.MapKeys() {
			simple, err := s.toSimple(rv.MapIndex(key).Interface(), options, depth)
			if err != nil {
				return nil, err
			}
			result[fmt.Sprint(key.Interface())] = simple
		}
		return result, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []interface{}{}, nil
		}
		result := make([]interface{}, rv.Len())
		for i := range result {
			simple, err := s.toSimple(rv.Index(i).Interface(), options, depth)
			if err != nil {
				return nil, err
			}
			result[i] = simple
		}
		return result, nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return s.toSimple(rv.Elem().Interface(), options, depth)
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return fmt.Sprint(value), nil
}

func (s *Serializer) toSimpleRecord(r *record.Record, options Options, depth int) (interface{}, error) {
	if depth > s.maxDepth() {
		return nil, restdata.Errorf(restdata.Internal,
			"record nesting deeper than %d levels serializing %v", s.maxDepth(), r.Schema.Label())
	}
	fields := make(map[string]interface{})
	for _, name := range options.FieldSet(r.Schema) {
		value, err := s.fieldValue(r, name, options, depth)
		if err != nil {
			return nil, err
		}
		fields[name] = value
	}
	if s.Format == Flat {
		fields["id"] = r.PKString()
		return fields, nil
	}
	return map[string]interface{}{
		"model":  r.Schema.Label(),
		"pk":     r.PKString(),
		"fields": fields,
	}, nil
}

func (s *Serializer) fieldValue(r *record.Record, name string, options Options, depth int) (interface{}, error) {
	if transform, ok := s.Transforms[name]; ok {
		return transform(r, s)
	}
	related := options.Related[name]
	_, stored := r.Schema.Field(name)
	if stored && related.IsZero() {
		return s.toSimple(r.Get(name), Options{}, depth)
	}
	if rel, ok := r.Schema.Relation(name); ok {
		if s.Store == nil {
			return nil, fmt.Errorf("cannot expand relation %v of %v without a store",
				name, r.Schema.Label())
		}
		value, err := record.Related(s.Store, r, rel)
		if err != nil {
			return nil, err
		}
		return s.toSimple(value, related, depth)
	}
	if stored {
		return s.toSimple(r.Get(name), related, depth)
	}
	return nil, nil
}

// DateTime renders a time as ISO 8601.  Fractional seconds are
// truncated to milliseconds and omitted when zero; a zero UTC offset
// is written as "Z".
func DateTime(t time.Time) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		layout += ".000"
	}
	if _, offset := t.Zone(); offset == 0 {
		return t.Format(layout) + "Z"
	}
	return t.Format(layout + "-07:00")
}
