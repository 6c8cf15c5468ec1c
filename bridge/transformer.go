package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// Properties returns obj's JSON encoding as a map keyed by local property names.
func Properties(obj any) (map[string]any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", obj, err)
	}
	decoded, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode %T: %w", obj, err)
	}
	props, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not encode as a JSON object", ErrMalformedPayload, obj)
	}
	return props, nil
}

// ApplyProperties patches obj with props keyed by local property names.
// Keys absent from props leave obj unchanged.
func ApplyProperties(obj any, props map[string]any) error {
	if p, ok := obj.(Patcher); ok {
		return p.Patch(props)
	}
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// Transformer maps between persistent objects and cloud objects.
type Transformer struct {
	// Mapping translates property names. Default: IdentityMapping.
	Mapping PropertyMapping
}

func (t Transformer) mapping() PropertyMapping {
	if t.Mapping == nil {
		return IdentityMapping{}
	}
	return t.Mapping
}

// CloudObject returns the cloud representation of obj.
func (t Transformer) CloudObject(obj Object) (CloudObject, error) {
	props, err := Properties(obj)
	if err != nil {
		return nil, err
	}
	m := t.mapping()
	cloud := make(CloudObject, len(props))
	for k, v := range props {
		cloud[m.CloudKey(k)] = v
	}
	return cloud, nil
}

// Apply updates obj in place with the properties of cloud.
func (t Transformer) Apply(obj Object, cloud CloudObject) error {
	m := t.mapping()
	props := make(map[string]any, len(cloud))
	for k, v := range cloud {
		props[m.PersistentKey(k)] = v
	}
	return ApplyProperties(obj, props)
}

// CloudIdentifier returns the identifier carried by cloud for entity.
func (t Transformer) CloudIdentifier(entity *EntityDescription, cloud CloudObject) (string, bool) {
	id := FormatValue(cloud[t.mapping().CloudKey(entity.Identifier)])
	return id, id != ""
}
