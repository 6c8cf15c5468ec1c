package bridge

import (
	"fmt"
	"reflect"
)

// Predicate is an equality filter on a local key path.
type Predicate struct {
	Key   string
	Value any
}

// Equal returns a predicate matching objects whose key equals value.
func Equal(key string, value any) *Predicate {
	return &Predicate{Key: key, Value: value}
}

// Matches reports whether obj satisfies the predicate. A nil predicate matches everything.
// Pointer objects compare by identity, other objects by deep equality; other
// values compare by their formatted form.
func (p *Predicate) Matches(obj any) bool {
	if p == nil {
		return true
	}
	v, ok := ValueForKeyPath(obj, p.Key)
	if !ok {
		return p.Value == nil
	}
	return equalValues(v, p.Value)
}

func (p *Predicate) String() string {
	if p == nil {
		return "TRUEPREDICATE"
	}
	return fmt.Sprintf("%s == %v", p.Key, p.Value)
}

func equalValues(a, b any) bool {
	ao, aok := a.(Object)
	bo, bok := b.(Object)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		av, bv := reflect.ValueOf(ao), reflect.ValueOf(bo)
		if av.Kind() == reflect.Pointer && bv.Kind() == reflect.Pointer {
			return av.Type() == bv.Type() && av.Pointer() == bv.Pointer()
		}
		return reflect.DeepEqual(ao, bo)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return FormatValue(a) == FormatValue(b)
}
