package rest

import "github.com/jacentio/cloudbridge/bridge"

// Record is a schemaless JSON object usable wherever a typed object is.
type Record map[string]any

var (
	_ bridge.Valuer  = Record(nil)
	_ bridge.Patcher = (*Record)(nil)
)

// Value returns the property named key.
func (r Record) Value(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// Patch merges dict into the record.
func (r *Record) Patch(dict map[string]any) error {
	if *r == nil {
		*r = make(Record, len(dict))
	}
	for k, v := range dict {
		(*r)[k] = v
	}
	return nil
}
