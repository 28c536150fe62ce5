package utils

import "reflect"

// IsNil reports whether v is nil, including a typed nil wrapped in an
// interface (nil pointer, slice, map, chan or func).
func IsNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
