package schema

import (
	"encoding/json"
	"strings"
)

// Schema is the ordered field list of a form. Order is display order.
type Schema []Field

// Parse decodes a schema from its stored JSON form. An empty string is an
// empty schema.
func Parse(data string) (Schema, error) {
	if strings.TrimSpace(data) == "" {
		return Schema{}, nil
	}
	var s Schema
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = Schema{}
	}
	return s, nil
}

// Encode returns the stored JSON form of s.
func (s Schema) Encode() (string, error) {
	if s == nil {
		s = Schema{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Index returns the position of the field with the given id, or -1.
func (s Schema) Index(id FieldID) int {
	for i, f := range s {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the field with the given id.
func (s Schema) Find(id FieldID) (Field, bool) {
	if i := s.Index(id); i >= 0 {
		return s[i], true
	}
	return Field{}, false
}

// Active returns the active fields in order.
func (s Schema) Active() Schema {
	out := Schema{}
	for _, f := range s {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// Labels returns the labels of s in order.
func (s Schema) Labels() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Label
	}
	return out
}

func (s Schema) clone() Schema {
	out := make(Schema, len(s))
	for i, f := range s {
		out[i] = f.clone()
	}
	return out
}
