package layering

import "reflect"

// MergeLayers flattens a fallback chain ordered from strongest to weakest.
// Values set by a stronger layer are kept; nil pointers, nil maps, nil slices
// and nil interfaces fall through to the next layer. Maps merge per key;
// every other value is taken whole from the strongest layer that sets it.
// Inputs are never aliased by the result.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	m := merger{clone: newCloner()}
	acc := m.clone.clone(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		acc = m.merge(reflect.ValueOf(layers[i]), acc)
	}
	if !acc.IsValid() {
		return zero
	}

	target := reflect.TypeOf(zero)
	if target == nil {
		// T is an interface; the dynamic value is the result.
		out, _ := acc.Interface().(T)
		return out
	}
	if acc.Type() != target {
		acc = acc.Convert(target)
	}
	return acc.Interface().(T)
}

type merger struct {
	clone *cloner
}

func (m merger) merge(strong, weak reflect.Value) reflect.Value {
	if unset(strong) {
		return m.clone.clone(weak)
	}
	switch strong.Kind() {
	case reflect.Pointer:
		result := reflect.New(strong.Type().Elem())
		result.Elem().Set(m.merge(strong.Elem(), elem(weak, reflect.Pointer)))
		return result
	case reflect.Interface:
		return m.merge(strong.Elem(), elem(weak, reflect.Interface)).Convert(strong.Type())
	case reflect.Struct:
		return m.mergeStruct(strong, weak)
	case reflect.Map:
		return m.mergeMap(strong, weak)
	default:
		return m.clone.clone(strong)
	}
}

func (m merger) mergeStruct(strong, weak reflect.Value) reflect.Value {
	result := reflect.New(strong.Type()).Elem()
	sameType := weak.IsValid() && weak.Type() == strong.Type()
	for i := 0; i < strong.NumField(); i++ {
		field := result.Field(i)
		if !field.CanSet() {
			continue
		}
		var fallback reflect.Value
		if sameType {
			fallback = weak.Field(i)
		}
		field.Set(m.merge(strong.Field(i), fallback))
	}
	return result
}

func (m merger) mergeMap(strong, weak reflect.Value) reflect.Value {
	result := reflect.MakeMapWithSize(strong.Type(), strong.Len())
	if weak.IsValid() && weak.Kind() == reflect.Map && weak.Type() == strong.Type() && !weak.IsNil() {
		for iter := weak.MapRange(); iter.Next(); {
			result.SetMapIndex(iter.Key(), m.clone.clone(iter.Value()))
		}
	}
	for iter := strong.MapRange(); iter.Next(); {
		key := iter.Key()
		if existing := result.MapIndex(key); existing.IsValid() {
			result.SetMapIndex(key, m.merge(iter.Value(), existing))
			continue
		}
		result.SetMapIndex(key, m.clone.clone(iter.Value()))
	}
	return result
}

// unset reports whether v leaves the slot to a weaker layer.
func unset(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// elem unwraps weak when it has the given kind and is not nil.
func elem(weak reflect.Value, kind reflect.Kind) reflect.Value {
	if !weak.IsValid() || weak.Kind() != kind || weak.IsNil() {
		return reflect.Value{}
	}
	return weak.Elem()
}
