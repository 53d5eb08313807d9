// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"strconv"
)

// RawRecord is one untyped object from a JSON export, exactly as decoded.
// Numbers arrive as json.Number so their literal form survives.
type RawRecord map[string]any

// String returns the value at key as a string, or "" when the key is
// absent or null. Numbers keep their literal text and booleans become
// "true"/"false"; objects and arrays are not coerced.
func (r RawRecord) String(key string) string {
	s, _ := r.lookupString(key)
	return s
}

// StringOK is like String but also reports whether key held a scalar
// that could be turned into a string.
func (r RawRecord) StringOK(key string) (string, bool) {
	return r.lookupString(key)
}

func (r RawRecord) lookupString(key string) (string, bool) {
	switch v := r[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// Float returns the numeric value at key, or 0 when the key is absent or
// does not hold a number (numeric strings are accepted).
func (r RawRecord) Float(key string) float64 {
	switch v := r[key].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Object returns the nested object at key. A missing key or a non-object
// value yields an empty, non-nil map.
func (r RawRecord) Object(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
