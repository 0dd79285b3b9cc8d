// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package record

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Converter turns a string, typically a query parameter or path
// segment, into a field's stored value type.
type Converter func(string) (interface{}, error)

// DateTimeLayouts are the accepted input layouts for DateTime fields,
// most specific first.
var DateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var errNotInteger = errors.New("Enter a whole number.")
var errNotNumber = errors.New("Enter a number.")
var errNotBoolean = errors.New("Enter a valid boolean.")
var errNotDateTime = errors.New("Enter a valid date/time.")

// ConverterFor returns the string converter for a field type.
func ConverterFor(t FieldType) Converter {
	return func(s string) (interface{}, error) {
		return Coerce(t, s)
	}
}

// Coerce converts v to the stored type for t.  v may already be of
// that type, a string, or one of the loosely typed values decoders
// produce (float64 for every JSON number, for instance).
func Coerce(t FieldType, v interface{}) (interface{}, error) {
	switch t {
	case String:
		switch vv := v.(type) {
		case string:
			return vv, nil
		case []byte:
			return string(vv), nil
		case fmt.Stringer:
			return vv.String(), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case Integer:
		return coerceInteger(v)
	case Float:
		f, ok := toFloat(v)
		if !ok {
			if s, isString := v.(string); isString {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return nil, errNotNumber
				}
				return parsed, nil
			}
			return nil, errNotNumber
		}
		return f, nil
	case Decimal:
		return coerceDecimal(v)
	case Boolean:
		switch vv := v.(type) {
		case bool:
			return vv, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(vv)) {
			case "1", "true", "t", "yes", "on":
				return true, nil
			case "0", "false", "f", "no", "off", "":
				return false, nil
			}
			return nil, errNotBoolean
		}
		if i, ok := toInt(v); ok {
			return i != 0, nil
		}
		return nil, errNotBoolean
	case DateTime:
		switch vv := v.(type) {
		case time.Time:
			return vv, nil
		case string:
			return ParseDateTime(vv)
		}
		return nil, errNotDateTime
	}
	return nil, fmt.Errorf("unknown field type %v", t)
}

// ParseDateTime parses a string in any of DateTimeLayouts.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNotDateTime
}

func coerceInteger(v interface{}) (interface{}, error) {
	if i, ok := toInt(v); ok {
		return i, nil
	}
	switch vv := v.(type) {
	case float64:
		if vv == float64(int64(vv)) {
			return int64(vv), nil
		}
	case float32:
		if vv == float32(int64(vv)) {
			return int64(vv), nil
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(vv), 10, 64)
		if err == nil {
			return i, nil
		}
	}
	return nil, errNotInteger
}

func coerceDecimal(v interface{}) (interface{}, error) {
	switch vv := v.(type) {
	case *big.Rat:
		return vv, nil
	case string:
		r, ok := new(big.Rat).SetString(strings.TrimSpace(vv))
		if !ok {
			return nil, errNotNumber
		}
		return r, nil
	}
	if i, ok := toInt(v); ok {
		return new(big.Rat).SetInt64(i), nil
	}
	if f, ok := toFloat(v); ok {
		r := new(big.Rat)
		if r.SetFloat64(f) == nil {
			return nil, errNotNumber
		}
		return r, nil
	}
	return nil, errNotNumber
}

func toInt(v interface{}) (int64, bool) {
	switch vv := v.(type) {
	case int:
		return int64(vv), true
	case int8:
		return int64(vv), true
	case int16:
		return int64(vv), true
	case int32:
		return int64(vv), true
	case int64:
		return vv, true
	case uint:
		return int64(vv), true
	case uint8:
		return int64(vv), true
	case uint16:
		return int64(vv), true
	case uint32:
		return int64(vv), true
	case uint64:
		return int64(vv), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case *big.Rat:
		f, _ := vv.Float64()
		return f, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Compare orders two stored values.  Numbers compare numerically
// across types, times chronologically, strings and booleans in the
// obvious way; nil sorts first.  Values of unrelated types compare
// by their string forms.
func Compare(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return compareInt(ai, bi)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return compareFloat(af, bf)
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

// Equal says whether two stored values are the same under Compare.
func Equal(a, b interface{}) bool {
	return Compare(a, b) == 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
