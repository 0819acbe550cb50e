package toolschema

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema renders the parameter object of s. Providers either embed the
// result as-is or re-dialect it.
func (s Spec) JSONSchema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(s.Params))
	for _, p := range s.Params {
		props[p.Name] = p.schema()
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   s.Required(),
	}
}

func (p Param) schema() *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:        string(p.Type),
		Description: p.Description,
	}
	for _, v := range p.Enum {
		out.Enum = append(out.Enum, v)
	}
	if p.Minimum != nil {
		v := *p.Minimum
		out.Minimum = &v
	}
	if p.Maximum != nil {
		v := *p.Maximum
		out.Maximum = &v
	}
	return out
}

// RawSchema is JSONSchema encoded for direct embedding in a request body.
func (s Spec) RawSchema() (json.RawMessage, error) {
	data, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, err
	}
	return data, nil
}
