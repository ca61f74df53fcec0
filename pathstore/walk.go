package pathstore

import (
	"fmt"
	"reflect"
)

// Property is a value with custom read and write logic. Lookup returns Get()
// wherever a Property is found and Assign calls Set instead of replacing it.
type Property interface {
	Get() any
	Set(value any)
}

// PropertyFuncs adapts a pair of closures into a Property.
type PropertyFuncs struct {
	GetFunc func() any
	SetFunc func(any)
}

func (p PropertyFuncs) Get() any {
	if p.GetFunc == nil {
		return nil
	}
	return p.GetFunc()
}

func (p PropertyFuncs) Set(value any) {
	if p.SetFunc != nil {
		p.SetFunc(value)
	}
}

// Lookup walks root along path. Missing intermediates report false rather
// than an error.
func Lookup(root any, path Path) (any, bool) {
	current := root
	for _, seg := range path {
		current = unwrap(current)
		next, ok := child(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return unwrap(current), true
}

// Assign writes value at path inside root, creating intermediate maps and
// growing slices as needed. Containers are mutated in place; the returned
// root differs from the input only when root itself had to be created.
func Assign(root any, path Path, value any) (any, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return assign(root, path, value)
}

func unwrap(value any) any {
	for {
		p, ok := value.(Property)
		if !ok {
			return value
		}
		value = p.Get()
	}
}

func child(container any, seg Segment) (any, bool) {
	switch seg.Kind {
	case KeySegment:
		switch c := container.(type) {
		case map[string]any:
			v, ok := c[seg.Key]
			return v, ok
		case nil:
			return nil, false
		}
		rv := reflect.ValueOf(container)
		switch rv.Kind() {
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			v := rv.MapIndex(reflect.ValueOf(seg.Key).Convert(rv.Type().Key()))
			if !v.IsValid() {
				return nil, false
			}
			return v.Interface(), true
		case reflect.Pointer:
			if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
				return nil, false
			}
			return structField(rv.Elem(), seg.Key)
		case reflect.Struct:
			return structField(rv, seg.Key)
		}
		return nil, false
	case IndexSegment:
		if c, ok := container.([]any); ok {
			if seg.Index < 0 || seg.Index >= len(c) {
				return nil, false
			}
			return c[seg.Index], true
		}
		if container == nil {
			return nil, false
		}
		rv := reflect.ValueOf(container)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, false
		}
		if seg.Index < 0 || seg.Index >= rv.Len() {
			return nil, false
		}
		return rv.Index(seg.Index).Interface(), true
	default:
		return nil, false
	}
}

func structField(rv reflect.Value, name string) (any, bool) {
	field, ok := rv.Type().FieldByName(name)
	if !ok || !field.IsExported() {
		return nil, false
	}
	return rv.FieldByIndex(field.Index).Interface(), true
}

func assign(container any, path Path, value any) (any, error) {
	if p, ok := container.(Property); ok {
		inner := p.Get()
		updated, err := assign(inner, path, value)
		if err != nil {
			return container, err
		}
		if !sameContainer(inner, updated) {
			p.Set(updated)
		}
		return container, nil
	}

	seg := path[0]
	rest := path[1:]
	switch seg.Kind {
	case KeySegment:
		return assignKey(container, seg.Key, rest, value)
	case IndexSegment:
		return assignIndex(container, seg.Index, rest, value)
	default:
		return container, fmt.Errorf("%w: unresolved subscript %q", ErrInvalidPath, seg.Expr)
	}
}

func assignKey(container any, key string, rest Path, value any) (any, error) {
	if container == nil {
		container = map[string]any{}
	}
	if m, ok := container.(map[string]any); ok {
		existing := m[key]
		if len(rest) == 0 {
			if p, ok := existing.(Property); ok {
				p.Set(value)
				return m, nil
			}
			m[key] = value
			return m, nil
		}
		updated, err := assign(existing, rest, value)
		if err != nil {
			return m, err
		}
		m[key] = updated
		return m, nil
	}

	rv := reflect.ValueOf(container)
	switch {
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		k := reflect.ValueOf(key).Convert(rv.Type().Key())
		var existing any
		if v := rv.MapIndex(k); v.IsValid() {
			existing = v.Interface()
		}
		next, err := descend(existing, rest, value)
		if err != nil {
			return container, err
		}
		nv, err := convertTo(next, rv.Type().Elem())
		if err != nil {
			return container, err
		}
		rv.SetMapIndex(k, nv)
		return container, nil
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct:
		field := rv.Elem().FieldByName(key)
		if !field.IsValid() || !field.CanSet() {
			return container, fmt.Errorf("%w: no settable field %q on %s", ErrNotContainer, key, rv.Elem().Type())
		}
		next, err := descend(field.Interface(), rest, value)
		if err != nil {
			return container, err
		}
		nv, err := convertTo(next, field.Type())
		if err != nil {
			return container, err
		}
		field.Set(nv)
		return container, nil
	}
	return container, fmt.Errorf("%w: cannot set key %q on %T", ErrNotContainer, key, container)
}

func assignIndex(container any, index int, rest Path, value any) (any, error) {
	if container == nil {
		container = []any{}
	}
	if s, ok := container.([]any); ok {
		if index >= len(s) {
			grown := make([]any, index+1)
			copy(grown, s)
			s = grown
		}
		if len(rest) == 0 {
			if p, ok := s[index].(Property); ok {
				p.Set(value)
				return s, nil
			}
			s[index] = value
			return s, nil
		}
		updated, err := assign(s[index], rest, value)
		if err != nil {
			return s, err
		}
		s[index] = updated
		return s, nil
	}

	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Slice {
		return container, fmt.Errorf("%w: cannot index %T", ErrNotContainer, container)
	}
	if index >= rv.Len() {
		grown := reflect.MakeSlice(rv.Type(), index+1, index+1)
		reflect.Copy(grown, rv)
		rv = grown
	}
	elem := rv.Index(index)
	next, err := descend(elem.Interface(), rest, value)
	if err != nil {
		return rv.Interface(), err
	}
	nv, err := convertTo(next, elem.Type())
	if err != nil {
		return rv.Interface(), err
	}
	elem.Set(nv)
	return rv.Interface(), nil
}

func descend(existing any, rest Path, value any) (any, error) {
	if len(rest) == 0 {
		if p, ok := existing.(Property); ok {
			p.Set(value)
			return existing, nil
		}
		return value, nil
	}
	return assign(existing, rest, value)
}

func convertTo(value any, typ reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(typ), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(typ) {
		return rv, nil
	}
	if rv.Kind() == typ.Kind() && rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot store %T as %s", ErrNotContainer, value, typ)
}

func sameContainer(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Pointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	default:
		return false
	}
}
