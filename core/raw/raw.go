// Package raw holds the untyped, insertion-ordered tree decoded from an OpenAPI
// document. Mapping values are *Map, sequences are []any and scalars are nil,
// bool, int, float64 or string.
package raw

import (
	"github.com/pb33f/libopenapi/orderedmap"
)

// Map is an ordered mapping node. Iteration with FromOldest follows the order in
// which keys appear in the source document.
type Map = orderedmap.Map[string, any]

const RefKey = "$ref"

func NewMap() *Map {
	return orderedmap.New[string, any]()
}

// Len is nil-safe.
func Len(m *Map) int {
	if m == nil {
		return 0
	}
	return m.Len()
}

func Lookup(m *Map, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	return m.Get(key)
}

func String(m *Map, key string) (string, bool) {
	v, ok := Lookup(m, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool reports the boolean stored under key, false when absent or not a bool.
func Bool(m *Map, key string) bool {
	v, ok := Lookup(m, key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func Object(m *Map, key string) (*Map, bool) {
	v, ok := Lookup(m, key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*Map)
	return obj, ok && obj != nil
}

func List(m *Map, key string) ([]any, bool) {
	v, ok := Lookup(m, key)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func Keys(m *Map) []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, m.Len())
	for k := range m.FromOldest() {
		keys = append(keys, k)
	}
	return keys
}

// Ref returns the target of a reference node ({"$ref": "..."}).
func Ref(m *Map) (string, bool) {
	ref, ok := String(m, RefKey)
	if !ok || ref == "" {
		return "", false
	}
	return ref, true
}

func Clone(m *Map) *Map {
	if m == nil {
		return nil
	}
	cloned := NewMap()
	for k, v := range m.FromOldest() {
		cloned.Set(k, CloneValue(v))
	}
	return cloned
}

func CloneValue(value any) any {
	switch v := value.(type) {
	case *Map:
		return Clone(v)
	case []any:
		arr := make([]any, len(v))
		for i, item := range v {
			arr[i] = CloneValue(item)
		}
		return arr
	default:
		return value
	}
}

// Plain converts a raw value into plain Go values (map[string]any, []any and
// scalars) so it can be embedded in IR payloads and marshalled.
func Plain(value any) any {
	switch v := value.(type) {
	case *Map:
		if v == nil {
			return nil
		}
		out := make(map[string]any, v.Len())
		for k, item := range v.FromOldest() {
			out[k] = Plain(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Plain(item)
		}
		return out
	default:
		return value
	}
}

// Equal reports deep equality, including key order.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case *Map:
		bv, ok := b.(*Map)
		if !ok || Len(av) != Len(bv) {
			return false
		}
		if av == nil || bv == nil {
			return av == bv
		}
		ak, bk := Keys(av), Keys(bv)
		for i := range ak {
			if ak[i] != bk[i] {
				return false
			}
			x, _ := av.Get(ak[i])
			y, _ := bv.Get(bk[i])
			if !Equal(x, y) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
