package layering

import "reflect"

// Clone returns a deep copy of value. Maps, slices and pointers are copied
// recursively; shared or cyclic references in the source are preserved as
// shared or cyclic references in the copy.
func Clone[T any](value T) T {
	var zero T
	cloned := newCloner().clone(reflect.ValueOf(value))
	if !cloned.IsValid() {
		return zero
	}
	out, ok := cloned.Interface().(T)
	if !ok {
		return zero
	}
	return out
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type cloner struct {
	seen map[visitKey]reflect.Value
}

func newCloner() *cloner {
	return &cloner{seen: make(map[visitKey]reflect.Value)}
}

func (c *cloner) clone(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if existing, ok := c.seen[key]; ok {
			return existing
		}
		out := reflect.New(v.Type().Elem())
		c.seen[key] = out
		out.Elem().Set(c.clone(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := c.clone(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(c.clone(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if existing, ok := c.seen[key]; ok {
			return existing
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = out
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.clone(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
		if existing, ok := c.seen[key]; ok {
			return existing
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = out
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.clone(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.clone(v.Index(i)))
		}
		return out
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
