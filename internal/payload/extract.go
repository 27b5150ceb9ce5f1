// Package payload provides small, total helpers for picking fields out of
// loosely typed broker payloads. The broker's wire formats vary across route
// families, so callers pass the candidate keys as data and take the first
// value that is present and coercible.
package payload

import "github.com/spf13/cast"

// FirstString returns the first non-empty string value among the candidate
// keys, coercing scalars with cast.
func FirstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s := cast.ToString(v); s != "" {
			return s
		}
	}
	return ""
}

// FirstInt returns the first value among the candidate keys that coerces to a
// non-zero int64.
func FirstInt(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if n := cast.ToInt64(v); n != 0 {
			return n
		}
	}
	return 0
}

// FirstBool returns the first value among the candidate keys that is present,
// coerced to bool, and reports whether any key matched.
func FirstBool(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		return cast.ToBool(v), true
	}
	return false, false
}

// FirstMap returns the first value among the candidate keys that is a
// map[string]any.
func FirstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return nil
}

// FirstSlice returns the first value among the candidate keys that is a
// []any.
func FirstSlice(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}
