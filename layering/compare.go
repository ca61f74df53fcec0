package layering

import (
	"math"
	"reflect"
)

// Equal reports structural equality. Containers are compared element by
// element; NaN equals NaN so a settled tree never reports itself dirty.
func Equal(a, b any) bool {
	if isNaN(a) && isNaN(b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Identical reports whether a and b are the same value without descending
// into containers. Maps, pointers, funcs and channels compare by identity,
// slices by backing array and length, everything else by ==.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}

	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
	}

	if va.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// IsPlainObject reports whether value is a keyed container (any map kind).
// Plain objects are mutated in place, so writes carrying one are always
// treated as a change.
func IsPlainObject(value any) bool {
	if value == nil {
		return false
	}
	return reflect.TypeOf(value).Kind() == reflect.Map
}

// IsCollection reports whether value is a slice or array.
func IsCollection(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func isNaN(value any) bool {
	switch v := value.(type) {
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	default:
		return false
	}
}
