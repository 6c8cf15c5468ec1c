package bridge

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ValueForKeyPath resolves a dotted chain of local property names against v.
//
// Each step is answered by a Valuer when the current value implements it;
// Accessors make that the cheapest path for hot types. Decoded JSON values
// (map[string]any, []any) are walked with JSONPath child and index steps.
// Structs are read field by field under their JSON names, following the
// "-" and omitempty tag options. Other values are walked through their JSON
// encoding.
func ValueForKeyPath(v any, keyPath string) (any, bool) {
	if keyPath == "" {
		return nil, false
	}
	cur := v
	for _, key := range strings.Split(keyPath, ".") {
		next, ok := valueForKey(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func valueForKey(v any, key string) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case Valuer:
		return x.Value(key)
	case map[string]any:
		return first(jp.C(key), x)
	case []any:
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		return first(jp.N(n), x)
	case string, bool, int, int64, float64:
		return nil, false
	default:
		if field, ok, isStruct := structField(x, key); isStruct {
			return field, ok
		}
		props, err := Properties(x)
		if err != nil {
			return nil, false
		}
		return valueForKey(props, key)
	}
}

var (
	jsonMarshaler = reflect.TypeFor[json.Marshaler]()
	textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()
)

type jsonField struct {
	index     []int
	omitEmpty bool
}

// structFields caches the JSON-named fields of struct types.
var structFields sync.Map // reflect.Type -> map[string]jsonField

// structField reads key from a struct or pointer to struct. isStruct is false
// for other values and for structs with their own JSON encoding.
func structField(v any, key string) (field any, ok bool, isStruct bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false, true
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || marshalsItself(rv.Type()) {
		return nil, false, false
	}

	f, ok := fieldsOf(rv.Type())[key]
	if !ok {
		return nil, false, true
	}
	fv, err := rv.FieldByIndexErr(f.index)
	if err != nil || (f.omitEmpty && isEmptyValue(fv)) {
		return nil, false, true
	}
	field, ok = plainValue(fv)
	return field, ok, true
}

func fieldsOf(t reflect.Type) map[string]jsonField {
	if cached, ok := structFields.Load(t); ok {
		return cached.(map[string]jsonField)
	}

	fields := map[string]jsonField{}
	depth := map[string]int{}
	var named [][]int
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || insideAny(sf.Index, named) {
			continue
		}
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if sf.Anonymous {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if name == "" {
					continue
				}
				named = append(named, sf.Index)
			}
		}
		if name == "" {
			name = sf.Name
		}
		if d, seen := depth[name]; seen && d <= len(sf.Index) {
			continue
		}
		depth[name] = len(sf.Index)
		fields[name] = jsonField{index: sf.Index, omitEmpty: strings.Contains(","+opts+",", ",omitempty,")}
	}

	actual, _ := structFields.LoadOrStore(t, fields)
	return actual.(map[string]jsonField)
}

// insideAny reports whether index lies within one of the embedded structs at prefixes.
func insideAny(index []int, prefixes [][]int) bool {
	for _, p := range prefixes {
		if len(index) > len(p) && slices.Equal(index[:len(p)], p) {
			return true
		}
	}
	return false
}

// plainValue converts a field to the value its JSON encoding would decode to,
// keeping structs as they are so the walk can continue on them.
func plainValue(fv reflect.Value) (any, bool) {
	for fv.Kind() == reflect.Interface || (fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() != reflect.Struct) {
		if fv.IsNil() {
			return nil, true
		}
		fv = fv.Elem()
	}
	if fv.Kind() == reflect.Pointer && fv.IsNil() {
		return nil, true
	}
	if marshalsItself(fv.Type()) {
		return decodedJSON(fv.Interface())
	}

	switch fv.Kind() {
	case reflect.String:
		return fv.String(), true
	case reflect.Bool:
		return fv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return fv.Float(), true
	case reflect.Struct, reflect.Pointer:
		return fv.Interface(), true
	default:
		return decodedJSON(fv.Interface())
	}
}

func marshalsItself(t reflect.Type) bool {
	return t.Implements(jsonMarshaler) || t.Implements(textMarshaler) ||
		reflect.PointerTo(t).Implements(jsonMarshaler) || reflect.PointerTo(t).Implements(textMarshaler)
}

func decodedJSON(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	out, err := oj.Parse(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

// isEmptyValue matches encoding/json's omitempty test.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

func first(x jp.Expr, data any) (any, bool) {
	results := x.Get(data)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// FormatValue stringifies a property value for use in paths and identifiers.
// nil becomes "", floats never use exponent notation.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
